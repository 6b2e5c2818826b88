package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/identity"
)

func newIDCommand(ctx *commandContext) *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print this machine's client id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			id := identity.New(cfg.Identity.Path, ctx.loggerValue()).GetOrCreate()
			fmt.Fprintln(out, id)
			if showPath {
				fmt.Fprintln(out, cfg.Identity.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "Also print where the id is stored")
	return cmd
}
