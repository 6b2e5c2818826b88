package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/audio"
	"github.com/bosley/lyrical/recorder"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var opts recorder.Options
	var transcribe bool
	var job jobFlags

	cmd := &cobra.Command{
		Use:   "record <output.wav>",
		Short: "Record from a microphone into a WAV file",
		Long:  "Record until --duration elapses or Ctrl-C. With --transcribe and a duration, upload the recording afterwards.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if transcribe && opts.Duration <= 0 {
				return errors.New("--transcribe requires --duration")
			}
			opts.Logger = ctx.loggerValue()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Recording... press Ctrl-C to stop")
			samples, err := recorder.Record(cmd.Context(), path, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s (%d samples)\n", path, samples)

			if !transcribe {
				return nil
			}
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			params, err := job.params(cfg)
			if err != nil {
				return err
			}
			cl, err := ctx.newClient(cmd)
			if err != nil {
				return err
			}
			defer cl.Close()
			printer := &progressPrinter{out: out}
			stop := printer.follow(cl.Session())
			snap, err := cl.Transcribe(cmd.Context(), path, params)
			stop()
			if err != nil {
				return err
			}
			printResult(out, snap, cl.Session().Segments().All())
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.DeviceID, "device", "d", 0, "Input device ID (see `lyrical devices`); 0 uses the default")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "t", 0, "Stop after this long (0 records until Ctrl-C)")
	cmd.Flags().IntVar(&opts.Format.SampleRate, "rate", audio.DefaultSampleRate, "Sample rate in Hz")
	cmd.Flags().IntVar(&opts.Format.Channels, "channels", audio.DefaultChannels, "Number of channels")
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "Upload the recording when done")
	job.register(cmd)
	return cmd
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "devices",
		Short:       "List audio input devices",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := recorder.ListDevices()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(devices))
			for _, d := range devices {
				rows = append(rows, []string{
					strconv.Itoa(d.ID),
					d.Name,
					strconv.Itoa(d.InputChannels),
					strconv.FormatFloat(d.DefaultSampleRate, 'f', 0, 64),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Channels", "Sample Rate"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newPlayCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "play <file.wav>",
		Short:       "Play a WAV file on the default output device",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := audio.Probe(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%s, %d Hz, %d ch)\n",
				args[0], info.Duration.Round(time.Millisecond), info.SampleRate, info.Channels)
			return recorder.Play(cmd.Context(), args[0])
		},
	}
}
