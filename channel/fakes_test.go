package channel

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errRemoteClosed = errors.New("remote closed")

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fire runs the callback on the calling goroutine, as if the timer expired.
func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	if t.stopped || t.fired {
		t.clock.mu.Unlock()
		return
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.f()
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) pendingWith(d time.Duration) []*fakeTimer {
	var out []*fakeTimer
	for _, t := range c.pending() {
		if t.d == d {
			out = append(out, t)
		}
	}
	return out
}

type fakeTransport struct {
	incoming chan string
	dropped  chan struct{}
	closed   chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once

	mu     sync.Mutex
	writes []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan string, 16),
		dropped:  make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() (string, error) {
	select {
	case <-t.closed:
		return "", errors.New("use of closed connection")
	case <-t.dropped:
		return "", errRemoteClosed
	case text := <-t.incoming:
		return text, nil
	}
}

func (t *fakeTransport) WriteMessage(text string) error {
	select {
	case <-t.closed:
		return errors.New("write on closed connection")
	case <-t.dropped:
		return errRemoteClosed
	default:
	}
	t.mu.Lock()
	t.writes = append(t.writes, text)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) drop() {
	t.dropOnce.Do(func() { close(t.dropped) })
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// fakeDialer hands out a fresh transport per dial, or fails while failNext > 0.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	clientIDs  []string
	failNext   int
}

func (d *fakeDialer) Dial(ctx context.Context, clientID string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clientIDs = append(d.clientIDs, clientID)
	if d.failNext > 0 {
		d.failNext--
		d.transports = append(d.transports, nil)
		return nil, errors.New("connection refused")
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

type recorder struct {
	mu       sync.Mutex
	messages []string
	states   []State
}

func (r *recorder) onMessage(raw string) {
	r.mu.Lock()
	r.messages = append(r.messages, raw)
	r.mu.Unlock()
}

func (r *recorder) onState(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) gotMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recorder) gotStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}
