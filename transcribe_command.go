package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/audio"
	"github.com/bosley/lyrical/config"
	"github.com/bosley/lyrical/segments"
	"github.com/bosley/lyrical/srt"
	"github.com/bosley/lyrical/upload"
)

type jobFlags struct {
	language   string
	model      string
	beamSize   int
	noSegments bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "Audio language: te (Telugu) or hi (Hindi)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model: "+strings.Join(upload.Models, ", "))
	cmd.Flags().IntVarP(&f.beamSize, "beam-size", "b", 0, fmt.Sprintf("Beam size (%d-%d)", upload.MinBeamSize, upload.MaxBeamSize))
	cmd.Flags().BoolVar(&f.noSegments, "no-segments", false, "Ask for plain text only")
}

func (f *jobFlags) params(cfg *config.Config) (upload.Params, error) {
	p := cfg.Params()
	if f.language != "" {
		p.Language = f.language
	}
	if f.model != "" {
		p.Model = f.model
	}
	if f.beamSize != 0 {
		p.BeamSize = f.beamSize
	}
	p.ReturnSegments = !f.noSegments
	return p.Normalize()
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var job jobFlags
	var exportDir string
	var fieldName string
	var removeIDs []int
	var edits []string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Upload an audio file and wait for its lyrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			params, err := job.params(cfg)
			if err != nil {
				return err
			}
			field, err := segments.ParseField(fieldName)
			if err != nil {
				return err
			}
			updates, err := parseEdits(edits)
			if err != nil {
				return err
			}

			logger := ctx.loggerValue()
			if info, err := audio.Probe(path); err == nil {
				logger.Info("Audio file",
					"file", filepath.Base(path),
					"sampleRate", info.SampleRate,
					"channels", info.Channels,
					"duration", info.Duration.Round(time.Millisecond))
			}

			cl, err := ctx.newClient(cmd)
			if err != nil {
				return err
			}
			defer cl.Close()

			runCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			printer := &progressPrinter{out: out}
			stop := printer.follow(cl.Session())
			snap, err := cl.Transcribe(runCtx, path, params)
			stop()
			if err != nil {
				return err
			}

			store := cl.Session().Segments()
			for _, id := range removeIDs {
				if !store.Remove(id) {
					logger.Warn("No segment to remove", "id", id)
				}
			}
			for id, value := range updates {
				if !store.Update(id, field, value) {
					logger.Warn("No segment to update", "id", id)
				}
			}

			fmt.Fprintln(out)
			printResult(out, snap, store.All())

			if exportDir != "" {
				target, err := exportSRT(exportDir, params.Language, field, store.All())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nExported %s\n", target)
			}
			return nil
		},
	}

	job.register(cmd)
	cmd.Flags().StringVarP(&exportDir, "export", "o", "", "Write an SRT file into this directory")
	cmd.Flags().StringVarP(&fieldName, "field", "f", "text", "Segment field to edit and export: text or transliteration")
	cmd.Flags().IntSliceVar(&removeIDs, "remove", nil, "Remove segments by id before export")
	cmd.Flags().StringArrayVar(&edits, "set", nil, "Replace a segment's text: <id>=<text> (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up waiting for the result after this long")
	return cmd
}

func parseEdits(edits []string) (map[int]string, error) {
	out := make(map[int]string, len(edits))
	for _, e := range edits {
		idText, value, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected <id>=<text>", e)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: segment id must be an integer", e)
		}
		out[id] = value
	}
	return out, nil
}

func exportSRT(dir, language string, field segments.Field, segs []segments.Segment) (string, error) {
	if len(segs) == 0 {
		return "", fmt.Errorf("no segments to export")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	target := filepath.Join(dir, srt.Filename(language, field))
	if err := writeFileAtomic(target, srt.Encode(segs, field)); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return target, nil
}
