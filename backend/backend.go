// Package backend is a loopback development server that speaks the same
// protocol as the transcription backend. It accepts uploads, streams progress
// over the push channel and replays fixture results; it never transcribes.
package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Configuration for the development backend
type Config struct {
	// HTTP server address
	Addr string

	// Certificate files for TLS; both empty serves plain HTTP
	CertFile string
	KeyFile  string

	// Directory holding <basename>.json completion payloads
	FixturesDir string

	// Number of workers processing uploads
	Workers int

	// Capacity of the job queue
	QueueSize int

	// Pause between progress lines
	StepDelay time.Duration

	Logger *slog.Logger
}

// Server manages the development backend
type Server struct {
	config Config
	logger *slog.Logger

	hub *hub

	// Processing queue
	queue   chan job
	workers sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	start   sync.Once
	stop    sync.Once

	uploadDir string
	upgrader  websocket.Upgrader
}

// New creates a Server. Workers do not run until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("cert and key files must be set together")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uploadDir, err := os.MkdirTemp("", "lyrical-uploads-")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:    cfg,
		logger:    logger,
		hub:       newHub(logger),
		queue:     make(chan job, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		uploadDir: uploadDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // loopback development server
			},
		},
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/upload/", s.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/calculate-wer", s.handleCalculateWER).Methods(http.MethodPost)
	router.HandleFunc("/ws/{clientID}", s.handleWebSocket)
	router.HandleFunc("/api/clients", s.handleListClients).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// Start launches the worker pool.
func (s *Server) Start() {
	s.start.Do(func() {
		for i := 0; i < s.config.Workers; i++ {
			s.workers.Add(1)
			go s.worker(s.ctx, i)
		}
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.Start()

	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsEnabled := s.config.CertFile != ""
	if tlsEnabled {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates: %w", err)
		}
		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Development backend listening",
			"address", s.config.Addr,
			"tls", tlsEnabled,
			"fixtures", s.config.FixturesDir)
		var err error
		if tlsEnabled {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}

// Close stops the workers, disconnects subscribers and removes stored
// uploads. Queued jobs are dropped.
func (s *Server) Close() {
	s.stop.Do(func() {
		s.cancel()
		s.workers.Wait()
		s.hub.closeAll()
		if err := os.RemoveAll(s.uploadDir); err != nil {
			s.logger.Warn("Failed to remove upload directory", "error", err, "path", s.uploadDir)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.count(),
		"queued":      len(s.queue),
	})
}

// handleListClients returns the client ids with an open push channel
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.clients())
}
