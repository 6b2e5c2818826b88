package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/segments"
	"github.com/bosley/lyrical/srt"
	"github.com/bosley/lyrical/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var job jobFlags
	var fieldName string
	var queueSize int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Transcribe audio files as they appear in a directory",
		Long: "Watch a directory and submit every new audio file. Results are written next to " +
			"each file as <name>_lyrics_<language>.srt. Write files under a .tmp name and rename " +
			"them when complete.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("no directory to watch; pass one or set watch.dir")
			}
			params, err := job.params(cfg)
			if err != nil {
				return err
			}
			if fieldName == "" {
				fieldName = cfg.Watch.Field
			}
			field, err := segments.ParseField(fieldName)
			if err != nil {
				return err
			}
			if queueSize <= 0 {
				queueSize = cfg.Watch.QueueSize
			}

			cl, err := ctx.newClient(cmd)
			if err != nil {
				return err
			}
			defer cl.Close()

			logger := ctx.loggerValue()
			out := cmd.OutOrStdout()
			process := func(runCtx context.Context, j watcher.Job) error {
				jobCtx, cancel := context.WithTimeout(runCtx, timeout)
				defer cancel()

				snap, err := cl.Transcribe(jobCtx, j.Path, params)
				if err != nil {
					return err
				}
				segs := cl.Session().Segments().All()
				if len(segs) == 0 {
					logger.Warn("Result has no segments; nothing exported", "file", j.Path)
					fmt.Fprintf(out, "%s: %s\n", filepath.Base(j.Path), snap.Result.FullText)
					return nil
				}
				base := strings.TrimSuffix(j.Path, filepath.Ext(j.Path))
				target := base + "_" + srt.Filename(params.Language, field)
				if err := writeFileAtomic(target, srt.Encode(segs, field)); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s -> %s\n", filepath.Base(j.Path), filepath.Base(target))
				return nil
			}

			w, err := watcher.New(watcher.Config{Dir: dir, QueueSize: queueSize, Logger: logger}, process)
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}

	job.register(cmd)
	cmd.Flags().StringVarP(&fieldName, "field", "f", "", "Segment field to export: text or transliteration")
	cmd.Flags().IntVar(&queueSize, "queue-size", 0, "Maximum number of files waiting to be processed")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Per-file time limit")
	return cmd
}
