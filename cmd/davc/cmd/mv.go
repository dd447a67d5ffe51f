package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func NewMvCmd(c *Context) *cobra.Command {
	ctx := context.Background()
	return &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Rename a remote file server-side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.FM.Move(ctx, args[0], args[1])
		},
	}
}

func init() {
	register(NewMvCmd)
}
