// Package channel maintains the push-update connection between this client and
// the transcription backend.
//
// A Manager owns exactly one live transport at a time and drives it through an
// explicit state machine:
//
//	Idle --Start--> Connecting --open--> Open --error/close--> Closed
//	Closed --reconnect delay--> Connecting (new transport)
//	any --Close--> Stopped
//
// All state is owned by a single loop goroutine. Transport readers, dial
// attempts and timers only post events to that loop, tagged with the
// generation of the connection attempt that produced them; events from an
// older generation are dropped so a superseded transport can never touch
// current state.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bosley/lyrical/message"
	"github.com/bosley/lyrical/metrics"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
)

var (
	ErrNoClientID   = errors.New("client id is required")
	ErrNotConnected = errors.New("push channel is not open")
	ErrClosed       = errors.New("push channel manager is closed")
	ErrStarted      = errors.New("push channel manager already started")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config for a Manager. Dialer is required; everything else has a default.
type Config struct {
	Dialer            Dialer
	Clock             Clock
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	HeartbeatToken    string
	Logger            *slog.Logger

	// OnMessage receives every inbound frame in arrival order. It is never
	// called concurrently with itself or with OnStateChange.
	OnMessage func(raw string)

	// OnStateChange observes every transition.
	OnStateChange func(State)
}

// Manager owns the push channel for one client id.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	events chan event
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// Observed state, readable from any goroutine. Written only by the loop,
	// which also reads it without the lock.
	mu      sync.Mutex
	state   State
	changed chan struct{}

	// Loop-owned.
	clientID  string
	gen       uint64
	transport Transport
	heartbeat Timer
	reconnect Timer
	ctx       context.Context
	cancel    context.CancelFunc
}

type event interface{}

type startEvent struct{ clientID string }

type dialedEvent struct {
	gen       uint64
	transport Transport
	err       error
}

type receivedEvent struct {
	gen  uint64
	text string
}

type droppedEvent struct {
	gen uint64
	err error
}

type heartbeatEvent struct{ gen uint64 }

type reconnectEvent struct{ gen uint64 }

type sendEvent struct {
	text  string
	reply chan error
}

type stopEvent struct{ ack chan struct{} }

func New(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HeartbeatToken == "" {
		cfg.HeartbeatToken = message.HeartbeatToken
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		events:  make(chan event),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go m.loop()
	return m
}

// Start leaves Idle and begins connecting for clientID. It may be called once.
func (m *Manager) Start(clientID string) error {
	if clientID == "" {
		return ErrNoClientID
	}
	if m.cfg.Dialer == nil {
		return errors.New("push channel dialer is not configured")
	}
	err := ErrStarted
	m.startOnce.Do(func() {
		if m.post(startEvent{clientID: clientID}) {
			err = nil
		} else {
			err = ErrClosed
		}
	})
	return err
}

// Close tears the channel down: the transport is closed and both timers are
// cancelled before Close returns. No callback runs after Close returns. Close
// must not be called from OnMessage or OnStateChange.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		ack := make(chan struct{})
		if m.post(stopEvent{ack: ack}) {
			<-ack
		}
	})
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateOpen
}

// WaitOpen blocks until the channel is Open, the manager stops, or ctx ends.
func (m *Manager) WaitOpen(ctx context.Context) error {
	for {
		m.mu.Lock()
		state, changed := m.state, m.changed
		m.mu.Unlock()

		switch state {
		case StateOpen:
			return nil
		case StateStopped:
			return ErrClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send writes text on the open transport.
func (m *Manager) Send(ctx context.Context, text string) error {
	reply := make(chan error, 1)
	select {
	case m.events <- sendEvent{text: text, reply: reply}:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands ev to the loop. It reports false once the loop has exited.
func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) loop() {
	defer close(m.done)

	for ev := range m.events {
		switch ev := ev.(type) {
		case startEvent:
			m.clientID = ev.clientID
			m.connect()

		case dialedEvent:
			m.handleDialed(ev)

		case receivedEvent:
			if ev.gen != m.gen || m.state != StateOpen {
				continue
			}
			if m.cfg.OnMessage != nil {
				m.cfg.OnMessage(ev.text)
			}

		case droppedEvent:
			if ev.gen != m.gen {
				continue
			}
			m.handleDrop(ev.err)

		case heartbeatEvent:
			if ev.gen != m.gen || m.state != StateOpen {
				continue
			}
			m.heartbeat = nil
			if err := m.transport.WriteMessage(m.cfg.HeartbeatToken); err != nil {
				m.handleDrop(fmt.Errorf("heartbeat: %w", err))
				continue
			}
			metrics.HeartbeatsSent.Inc()
			m.scheduleHeartbeat()

		case reconnectEvent:
			if ev.gen != m.gen || m.state != StateClosed {
				continue
			}
			m.reconnect = nil
			metrics.ChannelReconnects.Inc()
			m.logger.Info("Reconnecting push channel", "clientID", m.clientID)
			m.connect()

		case sendEvent:
			if m.state != StateOpen {
				ev.reply <- ErrNotConnected
				continue
			}
			err := m.transport.WriteMessage(ev.text)
			ev.reply <- err
			if err != nil {
				m.handleDrop(fmt.Errorf("send: %w", err))
			}

		case stopEvent:
			m.teardown()
			close(ev.ack)
			return
		}
	}
}

// connect starts a new generation: the previous transport and timers are
// discarded before the dial begins.
func (m *Manager) connect() {
	m.gen++
	m.stopTimers()
	m.closeTransport()
	m.setState(StateConnecting)

	gen := m.gen
	clientID := m.clientID
	m.logger.Debug("Connecting push channel", "clientID", clientID, "generation", gen)

	go func() {
		t, err := m.cfg.Dialer.Dial(m.ctx, clientID)
		if !m.post(dialedEvent{gen: gen, transport: t, err: err}) && t != nil {
			t.Close()
		}
	}()
}

func (m *Manager) handleDialed(ev dialedEvent) {
	if ev.gen != m.gen || m.state != StateConnecting {
		if ev.transport != nil {
			ev.transport.Close()
		}
		return
	}
	if ev.err != nil {
		m.handleDrop(ev.err)
		return
	}

	m.transport = ev.transport
	m.setState(StateOpen)
	metrics.ChannelConnects.Inc()
	m.logger.Info("Push channel connected", "clientID", m.clientID, "generation", m.gen)
	m.scheduleHeartbeat()

	go m.readLoop(m.gen, ev.transport)
}

func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		text, err := t.ReadMessage()
		if err != nil {
			m.post(droppedEvent{gen: gen, err: err})
			return
		}
		if !m.post(receivedEvent{gen: gen, text: text}) {
			return
		}
	}
}

// handleDrop moves Connecting or Open to Closed and schedules the single
// reconnect attempt for this generation.
func (m *Manager) handleDrop(err error) {
	if m.state != StateOpen && m.state != StateConnecting {
		return
	}
	if m.state == StateOpen {
		metrics.ChannelDrops.Inc()
	}

	m.stopTimers()
	m.closeTransport()
	m.setState(StateClosed)
	m.logger.Warn("Push channel disconnected",
		"clientID", m.clientID,
		"error", err,
		"retryIn", m.cfg.ReconnectDelay)

	gen := m.gen
	m.reconnect = m.cfg.Clock.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.post(reconnectEvent{gen: gen})
	})
}

func (m *Manager) scheduleHeartbeat() {
	gen := m.gen
	m.heartbeat = m.cfg.Clock.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.post(heartbeatEvent{gen: gen})
	})
}

func (m *Manager) stopTimers() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) closeTransport() {
	if m.transport == nil {
		return
	}
	t := m.transport
	m.transport = nil
	if err := t.Close(); err != nil {
		m.logger.Debug("Error closing push channel transport", "error", err)
	}
}

func (m *Manager) teardown() {
	m.gen++
	m.stopTimers()
	m.closeTransport()
	m.cancel()
	m.setState(StateStopped)
	m.logger.Debug("Push channel stopped", "clientID", m.clientID)
}

// setState notifies OnStateChange before the new state is observable through
// State and WaitOpen, so a caller that sees Open also sees its effects.
func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	if m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(s)
	}

	m.mu.Lock()
	m.state = s
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()
}
