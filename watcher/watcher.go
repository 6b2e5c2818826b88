// Package watcher submits audio files as they appear in a directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bosley/lyrical/audio"
	"github.com/fsnotify/fsnotify"
)

const DefaultQueueSize = 100

var ErrQueueFull = errors.New("job queue is full")

// Processor handles one file. Files are processed one at a time in the order
// they were queued.
type Processor func(ctx context.Context, job Job) error

// Job is a queued file.
type Job struct {
	Path   string
	Queued time.Time
}

type Config struct {
	Dir       string
	QueueSize int
	Logger    *slog.Logger
}

type Watcher struct {
	cfg     Config
	logger  *slog.Logger
	process Processor

	watcher *fsnotify.Watcher
	queue   chan Job
	worker  sync.WaitGroup
}

func New(cfg Config, process Processor) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if process == nil {
		return nil, errors.New("processor is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		process: process,
		watcher: watcher,
		queue:   make(chan Job, cfg.QueueSize),
	}, nil
}

// Run watches until ctx is cancelled. The job in flight is allowed to
// observe the cancellation; queued jobs are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("Started watching directory", "path", w.cfg.Dir)

	w.worker.Add(1)
	go w.work(ctx)
	defer w.worker.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if err := w.handleFSEvent(event); err != nil {
				w.logger.Error("Failed to handle file system event",
					"error", err,
					"event", event.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

// Enqueue adds path to the queue without blocking.
func (w *Watcher) Enqueue(path string) error {
	select {
	case w.queue <- Job{Path: path, Queued: time.Now()}:
		w.logger.Info("Queued audio file", "file", filepath.Base(path), "pending", len(w.queue))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, filepath.Base(path))
	}
}

// handleFSEvent queues newly created audio files. Writers should create
// files under a .tmp name and rename them when complete.
func (w *Watcher) handleFSEvent(event fsnotify.Event) error {
	if !event.Has(fsnotify.Create) {
		return nil
	}
	if !audio.IsAudioFile(event.Name) {
		w.logger.Debug("Skipping non-audio file", "file", event.Name)
		return nil
	}
	return w.Enqueue(event.Name)
}

func (w *Watcher) work(ctx context.Context) {
	w.logger.Debug("Worker starting")
	defer func() {
		w.logger.Debug("Worker shutting down")
		w.worker.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case job := <-w.queue:
			start := time.Now()
			w.logger.Info("Processing audio file", "file", job.Path)
			if err := w.process(ctx, job); err != nil {
				w.logger.Error("Failed to process audio file",
					"error", err,
					"file", job.Path)
				continue
			}
			w.logger.Info("Processed audio file",
				"file", job.Path,
				"duration", time.Since(start))
		}
	}
}
