package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type downloadArgs struct {
	link string
	out  string
}

func NewDownloadCmd(c *Context) *cobra.Command {
	args := &downloadArgs{}
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "download",
		Short: "Download a remote file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return onRunDownload(ctx, c, args)
		},
	}
	subc.PersistentFlags().StringVarP(&args.link, "link", "l", "", "remote file link")
	subc.PersistentFlags().StringVarP(&args.out, "out", "o", "", "local output file, defaults to the remote name")
	return subc
}

func onRunDownload(ctx context.Context, c *Context, args *downloadArgs) error {
	if len(args.link) == 0 {
		return fmt.Errorf("no download link found")
	}
	start := time.Now()
	h, err := c.FM.Open(ctx, args.link)
	if err != nil {
		return fmt.Errorf("open remote file failed, link:%s, err:%w", args.link, err)
	}
	defer h.Close()
	out := args.out
	if len(out) == 0 {
		out = path.Base(args.link)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create local file:%s, err:%w", out, err)
	}
	defer f.Close()
	n, err := io.Copy(f, h)
	if err != nil {
		return fmt.Errorf("download file failed, link:%s, err:%w", args.link, err)
	}
	logutil.GetLogger(ctx).Info("download file succ",
		zap.String("link", args.link), zap.String("out", out),
		zap.Int64("size", n), zap.Duration("cost", time.Since(start)))
	return nil
}

func init() {
	register(NewDownloadCmd)
}
