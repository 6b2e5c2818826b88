// Package session folds push channel traffic and upload outcomes into one
// consistent view of the current transcription job.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bosley/lyrical/channel"
	"github.com/bosley/lyrical/message"
	"github.com/bosley/lyrical/metrics"
	"github.com/bosley/lyrical/segments"
	"github.com/bosley/lyrical/upload"
)

const (
	CompletionLine = "✨ Processing complete! Results are ready."
	ReconnectLine  = "🔌 Reconnected to the server; waiting for the job to finish."
	AbandonLine    = "⏹️ Stopped waiting for this job; a new upload can be started."
	ErrorPrefix    = "Error: "
)

var (
	ErrNoFile       = errors.New("no audio file selected")
	ErrNoClientID   = errors.New("client id is not available yet")
	ErrNotConnected = errors.New("push channel is not open")
	ErrBusy         = errors.New("a job is already in progress")
	ErrAbandoned    = errors.New("job abandoned before completion")
)

// Phase is the job phase combined with channel availability. Processing
// always implies an open channel; a job whose channel drops is Suspended
// until the channel reopens.
type Phase int

const (
	PhaseOffline Phase = iota
	PhaseReady
	PhaseProcessing
	PhaseSuspended
)

func (p Phase) String() string {
	switch p {
	case PhaseOffline:
		return "offline"
	case PhaseReady:
		return "ready"
	case PhaseProcessing:
		return "processing"
	case PhaseSuspended:
		return "suspended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// View says which representation of the result is authoritative.
type View int

const (
	ViewText View = iota
	ViewSegments
)

// Result is the transcript of the last completion payload.
type Result struct {
	FullText        string
	Transliteration string
}

// Uploader starts server-side processing. upload.Client implements it.
type Uploader interface {
	Submit(ctx context.Context, src upload.Source, params upload.Params, clientID string) (upload.Ack, error)
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	ClientID string
	Phase    Phase
	Progress []string
	Result   Result
	Segments []segments.Segment
	Err      error

	view View
}

// View returns the authoritative representation for display.
func (s Snapshot) View() View { return s.view }

// Loading reports whether a job is actively being waited on.
func (s Snapshot) Loading() bool { return s.Phase == PhaseProcessing }

// Session is the client-side state of one user. It is safe for concurrent
// use; channel messages are expected to arrive one at a time, in order.
type Session struct {
	logger   *slog.Logger
	clientID string
	segments *segments.Store

	mu       sync.Mutex
	phase    Phase
	progress []string
	result   Result
	view     View
	err      error
	changed  chan struct{}
}

func New(clientID string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:   logger,
		clientID: clientID,
		segments: segments.NewStore(),
		changed:  make(chan struct{}),
	}
}

func (s *Session) ClientID() string { return s.clientID }

// Segments exposes the editable segment collection of the last result.
func (s *Session) Segments() *segments.Store { return s.segments }

// HandleMessage folds one inbound channel frame into the session.
func (s *Session) HandleMessage(raw string) {
	msg := message.Classify(raw)
	metrics.MessagesReceived.WithLabelValues(msg.Kind.String()).Inc()

	switch msg.Kind {
	case message.KindHeartbeat:
		return

	case message.KindCompletion:
		c := msg.Completion

		s.mu.Lock()
		s.segments.Replace(c.Segments)
		s.result = Result{FullText: c.FullText, Transliteration: c.Transliteration}
		if len(c.Segments) > 0 {
			s.view = ViewSegments
		} else {
			s.view = ViewText
		}
		s.progress = append(s.progress, CompletionLine)
		s.finishLocked(nil)
		s.mu.Unlock()

		s.logger.Info("Transcription complete",
			"clientID", s.clientID,
			"segments", len(c.Segments),
			"textLength", len(c.FullText))

	default:
		s.mu.Lock()
		s.progress = append(s.progress, msg.Text)
		s.notifyLocked()
		s.mu.Unlock()

		s.logger.Debug("Progress", "clientID", s.clientID, "line", msg.Text)
	}
}

// HandleChannelState tracks the push channel so the phase never claims a job
// is loading while the channel is down.
func (s *Session) HandleChannelState(state channel.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := state == channel.StateOpen
	prev := s.phase
	switch {
	case open && s.phase == PhaseOffline:
		s.phase = PhaseReady
	case open && s.phase == PhaseSuspended:
		s.phase = PhaseProcessing
		s.progress = append(s.progress, ReconnectLine)
	case !open && s.phase == PhaseReady:
		s.phase = PhaseOffline
	case !open && s.phase == PhaseProcessing:
		s.phase = PhaseSuspended
	}
	if s.phase != prev {
		s.logger.Debug("Session phase changed",
			"clientID", s.clientID,
			"from", prev.String(),
			"to", s.phase.String(),
			"channel", state.String())
		s.notifyLocked()
	}
}

// Submit starts a job. The previous result and progress are discarded, the
// upload acknowledgement (or error) is recorded as a progress line, and the
// job stays in progress until a completion payload arrives.
func (s *Session) Submit(ctx context.Context, up Uploader, src upload.Source, params upload.Params) error {
	if src == nil {
		return ErrNoFile
	}
	if s.clientID == "" {
		return ErrNoClientID
	}

	s.mu.Lock()
	switch s.phase {
	case PhaseOffline:
		s.mu.Unlock()
		return ErrNotConnected
	case PhaseProcessing, PhaseSuspended:
		s.mu.Unlock()
		return ErrBusy
	}
	s.phase = PhaseProcessing
	s.progress = nil
	s.result = Result{}
	s.view = ViewText
	s.err = nil
	s.segments.Replace(nil)
	s.notifyLocked()
	s.mu.Unlock()

	ack, err := up.Submit(ctx, src, params, s.clientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.progress = append(s.progress, ErrorPrefix+err.Error())
		s.finishLocked(fmt.Errorf("upload: %w", err))
		s.logger.Error("Upload failed", "error", err, "clientID", s.clientID)
		return err
	}
	if line := strings.TrimSpace(ack.Message); line != "" {
		s.progress = append(s.progress, line)
		s.notifyLocked()
	}
	return nil
}

// Abandon gives up on the job in progress so a new one can be submitted. A
// completion that still arrives for it is applied like any other. Abandon
// reports whether a job was in progress.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseProcessing && s.phase != PhaseSuspended {
		return false
	}
	s.progress = append(s.progress, AbandonLine)
	s.finishLocked(ErrAbandoned)
	s.logger.Warn("Job abandoned", "clientID", s.clientID)
	return true
}

// Wait blocks until the current job finishes and returns the final state.
// It returns immediately when no job is in progress.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		phase, changed := s.phase, s.changed
		s.mu.Unlock()

		if phase != PhaseProcessing && phase != PhaseSuspended {
			snap := s.Snapshot()
			return snap, snap.Err
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// Changed returns a channel closed on the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ClientID: s.clientID,
		Phase:    s.phase,
		Progress: append([]string(nil), s.progress...),
		Result:   s.result,
		Segments: s.segments.All(),
		Err:      s.err,
		view:     s.view,
	}
}

// finishLocked ends the current job, if any. A completion that arrives with
// no job pending still updates the result.
func (s *Session) finishLocked(err error) {
	switch s.phase {
	case PhaseProcessing:
		s.phase = PhaseReady
	case PhaseSuspended:
		s.phase = PhaseOffline
	}
	s.err = err
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
