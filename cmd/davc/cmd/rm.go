package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func NewRmCmd(c *Context) *cobra.Command {
	var recursive bool
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "rm <link>",
		Short: "Remove a remote file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recursive {
				return c.FM.RemoveDir(ctx, args[0])
			}
			return c.FM.Remove(ctx, args[0])
		},
	}
	subc.PersistentFlags().BoolVarP(&recursive, "recursive", "r", false, "remove a directory and its contents")
	return subc
}

func init() {
	register(NewRmCmd)
}
