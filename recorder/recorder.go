// Package recorder captures microphone audio to WAV files for upload and
// plays them back for a quick preview.
package recorder

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bosley/lyrical/audio"
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

var ErrNoInputDevice = errors.New("no usable input device")

// Device is one capture-capable device as reported by PortAudio.
type Device struct {
	ID                int
	Name              string
	InputChannels     int
	DefaultSampleRate float64
}

// ListDevices returns the input devices. The ID is what Options.DeviceID
// expects.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return inputDevices(devices), nil
}

func inputDevices(devices []*portaudio.DeviceInfo) []Device {
	out := make([]Device, 0)
	for id, device := range devices {
		if device.MaxInputChannels > 0 {
			out = append(out, Device{
				ID:                id,
				Name:              device.Name,
				InputChannels:     device.MaxInputChannels,
				DefaultSampleRate: device.DefaultSampleRate,
			})
		}
	}
	return out
}

// Options for Record. A zero DeviceID selects the default input; a zero
// Duration records until ctx is cancelled.
type Options struct {
	DeviceID int
	Duration time.Duration
	Format   audio.Format
	Logger   *slog.Logger
}

// Record captures PCM16 audio into a new WAV file at path and returns the
// number of samples written.
func Record(ctx context.Context, path string, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	format := opts.Format
	if format.SampleRate <= 0 {
		format.SampleRate = audio.DefaultSampleRate
	}
	if format.Channels <= 0 {
		format.Channels = audio.DefaultChannels
	}

	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := pickInput(opts.DeviceID)
	if err != nil {
		return 0, err
	}
	logger.Info("Using audio device",
		"deviceID", opts.DeviceID,
		"deviceName", device.Name,
		"sampleRate", format.SampleRate,
		"channels", format.Channels)

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create recording: %w", err)
	}
	defer file.Close()

	if err := audio.WriteWavHeader(file, format, 0); err != nil {
		return 0, fmt.Errorf("failed to write wav header: %w", err)
	}

	w := &sampleWriter{buf: bufio.NewWriter(file)}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: format.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, w.write)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return 0, fmt.Errorf("failed to start audio stream: %w", err)
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	<-ctx.Done()

	if err := stream.Stop(); err != nil {
		logger.Error("Failed to stop audio stream", "error", err)
	}

	samples, err := w.finish()
	if err != nil {
		return samples, fmt.Errorf("failed to write samples: %w", err)
	}
	if err := audio.UpdateWavHeader(file, uint32(samples*2)); err != nil {
		return samples, err
	}
	logger.Info("Recording saved",
		"path", path,
		"samples", samples,
		"durationSeconds", float64(samples)/float64(format.SampleRate*format.Channels))
	return samples, nil
}

func pickInput(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID <= 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get audio devices: %w", err)
	}
	return selectInput(devices, deviceID)
}

func selectInput(devices []*portaudio.DeviceInfo, deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("%w: device %d does not exist", ErrNoInputDevice, deviceID)
	}
	device := devices[deviceID]
	if device.MaxInputChannels == 0 {
		return nil, fmt.Errorf("%w: %q is not an input device", ErrNoInputDevice, device.Name)
	}
	return device, nil
}

// sampleWriter receives stream callbacks. The first write error is kept and
// later buffers are dropped.
type sampleWriter struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	samples int
	err     error
}

func (w *sampleWriter) write(in []int16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := binary.Write(w.buf, binary.LittleEndian, in); err != nil {
		w.err = err
		return
	}
	w.samples += len(in)
}

func (w *sampleWriter) finish() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.samples, w.err
	}
	return w.samples, w.buf.Flush()
}
