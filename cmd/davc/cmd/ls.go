package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/davfile/davurl"
	"github.com/xxxsen/davfile/glob"
)

func NewLsCmd(c *Context) *cobra.Command {
	ctx := context.Background()
	return &cobra.Command{
		Use:   "ls <link or pattern>",
		Short: "List a remote directory or expand a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return onRunLs(ctx, c, args[0])
		},
	}
}

func onRunLs(ctx context.Context, c *Context, link string) error {
	if !davurl.IsWebDAVURL(link) {
		return fmt.Errorf("invalid link:%s", link)
	}
	if glob.HasWildcard(link) {
		rs, err := c.FM.Glob(ctx, link)
		if err != nil {
			return err
		}
		for _, r := range rs {
			fmt.Println(r)
		}
		return nil
	}
	ents, err := c.FM.List(ctx, link)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		name := ent.Link
		if ent.IsCollection {
			name += "/"
		}
		fmt.Println(name)
	}
	return nil
}

func init() {
	register(NewLsCmd)
}
