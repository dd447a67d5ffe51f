package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func NewMkdirCmd(c *Context) *cobra.Command {
	var parents bool
	ctx := context.Background()
	subc := &cobra.Command{
		Use:   "mkdir <link>",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parents {
				return c.FM.MkdirAll(ctx, args[0])
			}
			return c.FM.Mkdir(ctx, args[0])
		},
	}
	subc.PersistentFlags().BoolVarP(&parents, "parents", "p", false, "create parent directories as needed")
	return subc
}

func init() {
	register(NewMkdirCmd)
}
