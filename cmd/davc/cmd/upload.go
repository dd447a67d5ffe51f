package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/davfile/davurl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type uploadArgs struct {
	files []string
	dest  string
}

func NewUploadCmd(c *Context) *cobra.Command {
	args := &uploadArgs{}
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "upload",
		Short: "Upload local files to a remote directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return onRunUpload(ctx, c, args)
		},
	}
	subc.PersistentFlags().StringArrayVarP(&args.files, "file", "f", nil, "local file to upload, repeatable")
	subc.PersistentFlags().StringVarP(&args.dest, "dest", "d", "", "remote directory link")
	return subc
}

func onRunUpload(ctx context.Context, c *Context, args *uploadArgs) error {
	if len(args.files) == 0 {
		return fmt.Errorf("no upload file found")
	}
	if !davurl.IsWebDAVURL(args.dest) {
		return fmt.Errorf("invalid dest link:%s", args.dest)
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.Config.Thread)
	for _, file := range args.files {
		file := file
		eg.Go(func() error {
			return uploadOne(gctx, c, file, args.dest)
		})
	}
	return eg.Wait()
}

func uploadOne(ctx context.Context, c *Context, file string, dest string) error {
	start := time.Now()
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open local file:%s, err:%w", file, err)
	}
	defer f.Close()
	link := strings.TrimSuffix(dest, "/") + "/" + filepath.Base(file)
	h, err := c.FM.Create(ctx, link)
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, f); err != nil {
		_ = h.Close()
		return fmt.Errorf("buffer local file:%s, err:%w", file, err)
	}
	if err := h.Close(); err != nil {
		return fmt.Errorf("upload file failed, link:%s, err:%w", link, err)
	}
	logutil.GetLogger(ctx).Info("upload file succ",
		zap.String("link", link), zap.Int64("size", h.Size()), zap.Duration("cost", time.Since(start)))
	return nil
}

func init() {
	register(NewUploadCmd)
}
