// Package client wires the identity store, push channel, session, uploader
// and comparison client into one object the CLI drives.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bosley/lyrical/channel"
	"github.com/bosley/lyrical/compare"
	"github.com/bosley/lyrical/identity"
	"github.com/bosley/lyrical/session"
	"github.com/bosley/lyrical/upload"
)

var ErrNotStarted = errors.New("client is not started")

type Options struct {
	ServerURL    string
	IdentityPath string

	HTTPClient        *http.Client
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// Dialer overrides the websocket dialer built from ServerURL.
	Dialer channel.Dialer

	Logger *slog.Logger
}

type Client struct {
	opts     Options
	logger   *slog.Logger
	identity *identity.Store
	uploader *upload.Client
	comparer *compare.Client

	mu      sync.Mutex
	session *session.Session
	channel *channel.Manager
}

func New(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("server url is required")
	}
	if _, err := channel.ChannelURL(opts.ServerURL, "probe"); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = &channel.WebSocketDialer{
			BaseURL: opts.ServerURL,
			Dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		}
	}

	return &Client{
		opts:     opts,
		logger:   logger,
		identity: identity.New(opts.IdentityPath, logger),
		uploader: upload.New(opts.ServerURL, opts.HTTPClient, logger),
		comparer: compare.New(opts.ServerURL, opts.HTTPClient, logger),
	}, nil
}

// Start resolves the client id and opens the push channel. The channel keeps
// reconnecting in the background until Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		return channel.ErrStarted
	}

	clientID := c.identity.GetOrCreate()
	sess := session.New(clientID, c.logger)
	mgr := channel.New(channel.Config{
		Dialer:            c.opts.Dialer,
		HeartbeatInterval: c.opts.HeartbeatInterval,
		ReconnectDelay:    c.opts.ReconnectDelay,
		Logger:            c.logger,
		OnMessage:         sess.HandleMessage,
		OnStateChange: func(s channel.State) {
			c.logger.Debug("Push channel state", "clientID", clientID, "state", s.String())
			sess.HandleChannelState(s)
		},
	})
	if err := mgr.Start(clientID); err != nil {
		mgr.Close()
		return fmt.Errorf("start push channel: %w", err)
	}

	c.session = sess
	c.channel = mgr
	c.logger.Info("Client started", "clientID", clientID, "server", c.opts.ServerURL)
	return ctx.Err()
}

func (c *Client) parts() (*session.Session, *channel.Manager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return nil, nil, ErrNotStarted
	}
	return c.session, c.channel, nil
}

// Session returns the live session, or nil before Start.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// ClientID returns the persisted identifier.
func (c *Client) ClientID() string {
	return c.identity.GetOrCreate()
}

// WaitConnected blocks until the push channel is open.
func (c *Client) WaitConnected(ctx context.Context) error {
	_, mgr, err := c.parts()
	if err != nil {
		return err
	}
	return mgr.WaitOpen(ctx)
}

// Transcribe uploads the file at path and waits for the completion payload.
func (c *Client) Transcribe(ctx context.Context, path string, params upload.Params) (session.Snapshot, error) {
	return c.TranscribeSource(ctx, upload.FileSource(path), params)
}

// TranscribeSource is Transcribe for an arbitrary source.
func (c *Client) TranscribeSource(ctx context.Context, src upload.Source, params upload.Params) (session.Snapshot, error) {
	sess, mgr, err := c.parts()
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := mgr.WaitOpen(ctx); err != nil {
		return sess.Snapshot(), fmt.Errorf("wait for push channel: %w", err)
	}

	start := time.Now()
	if err := sess.Submit(ctx, c.uploader, src, params); err != nil {
		return sess.Snapshot(), err
	}

	snap, err := sess.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			sess.Abandon()
			snap = sess.Snapshot()
		}
		return snap, err
	}
	c.logger.Info("Transcription finished",
		"file", src.Name(),
		"segments", len(snap.Segments),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// Compare scores hypothesis against reference.
func (c *Client) Compare(ctx context.Context, reference, hypothesis string) (compare.Result, error) {
	return c.comparer.Compare(ctx, reference, hypothesis)
}

// Close stops the push channel. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	mgr := c.channel
	c.mu.Unlock()
	if mgr != nil {
		mgr.Close()
	}
}
