package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Largest inbound frame accepted; completion payloads can be large
	maxMessageSize = 8 << 20
)

// Transport is one live connection. A transport is never reused once it has
// been closed or has failed.
type Transport interface {
	ReadMessage() (string, error)
	WriteMessage(text string) error
	Close() error
}

// Dialer opens a new Transport for the channel keyed by clientID.
type Dialer interface {
	Dial(ctx context.Context, clientID string) (Transport, error)
}

// WebSocketDialer connects to <BaseURL>/ws/{clientID}.
type WebSocketDialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, clientID string) (Transport, error) {
	target, err := ChannelURL(d.BaseURL, clientID)
	if err != nil {
		return nil, err
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to push channel: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	return &wsTransport{conn: conn}, nil
}

// ChannelURL maps an http(s) or ws(s) base URL to the channel endpoint.
func ChannelURL(base, clientID string) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", ErrNoClientID
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}
	rawPrefix := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + clientID
	u.RawPath = rawPrefix + "/ws/" + url.PathEscape(clientID)
	u.RawQuery = ""
	return u.String(), nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() (string, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return string(data), nil
		}
	}
}

func (t *wsTransport) WriteMessage(text string) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (t *wsTransport) Close() error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
