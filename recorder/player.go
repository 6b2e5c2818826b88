package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gordonklaus/portaudio"
	"github.com/youpy/go-wav"
)

// Play sends a WAV file to the default output device until the file ends or
// ctx is cancelled.
func Play(ctx context.Context, filename string) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return fmt.Errorf("failed to read wav format: %w", err)
	}
	channels := int(format.NumChannels)

	finished := make(chan struct{})
	var closed bool
	stream, err := portaudio.OpenDefaultStream(
		0,
		channels,
		float64(format.SampleRate),
		framesPerBuffer,
		func(out []int16) {
			frames := uint32(len(out) / channels)
			samples, err := reader.ReadSamples(frames)
			if err != nil && err != io.EOF {
				slog.Error("Error reading from WAV file", "error", err)
			}
			n := fillFrames(out, samples, channels)
			if n == 0 && !closed {
				closed = true
				close(finished)
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	select {
	case <-finished:
	case <-ctx.Done():
	}
	return stream.Stop()
}

// fillFrames interleaves samples into out and pads the rest with silence.
// It returns the number of frames copied.
func fillFrames(out []int16, samples []wav.Sample, channels int) int {
	n := 0
	for i, s := range samples {
		if (i+1)*channels > len(out) {
			break
		}
		for c := 0; c < channels; c++ {
			v := s.Values[0]
			if c < len(s.Values) {
				v = s.Values[c]
			}
			out[i*channels+c] = int16(v)
		}
		n++
	}
	for i := n * channels; i < len(out); i++ {
		out[i] = 0
	}
	return n
}
