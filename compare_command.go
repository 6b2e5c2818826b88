package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/compare"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "compare <reference-file> <hypothesis-file>",
		Short: "Score a transcript against reference lyrics",
		Long: "Compute the word error rate of a transcript against reference lyrics and show the " +
			"word alignment. Either file may be \"-\" to read stdin.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" && args[1] == "-" {
				return errors.New("only one of the files can be read from stdin")
			}
			reference, err := readText(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			hypothesis, err := readText(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			var res compare.Result
			if local {
				if reference == "" {
					return compare.ErrEmptyReference
				}
				res = compare.Align(reference, hypothesis)
			} else {
				cfg, err := ctx.ensureConfig(cmd)
				if err != nil {
					return err
				}
				res, err = compare.New(cfg.Server.URL, nil, ctx.loggerValue()).Compare(cmd.Context(), reference, hypothesis)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			colorize := !plain && shouldColorize(out)
			ref, hyp := compare.Render(res, colorize)
			fmt.Fprintln(out, compare.Summary(res))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Reference: ", ref)
			fmt.Fprintln(out, "Hypothesis:", hyp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Score locally instead of asking the backend")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable colored output")
	return cmd
}
