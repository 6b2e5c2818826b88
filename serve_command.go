package main

import (
	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/backend"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var fixtures string
	var workers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback development backend",
		Long: "Serve the upload, push channel and comparison endpoints locally. Uploads are " +
			"answered with <fixtures>/<name>.json when present, otherwise with a synthetic result.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			bc := backend.Config{
				Addr:        cfg.Backend.Bind,
				CertFile:    cfg.Backend.CertFile,
				KeyFile:     cfg.Backend.KeyFile,
				FixturesDir: cfg.Backend.FixturesDir,
				Workers:     cfg.Backend.Workers,
				StepDelay:   cfg.StepDelay(),
				Logger:      ctx.loggerValue(),
			}
			if addr != "" {
				bc.Addr = addr
			}
			if fixtures != "" {
				bc.FixturesDir = fixtures
			}
			if workers > 0 {
				bc.Workers = workers
			}

			srv, err := backend.New(bc)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides backend.bind)")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "Directory of recorded completion payloads")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of job workers")
	return cmd
}
