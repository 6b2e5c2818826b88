package backend

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bosley/lyrical/message"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxInbound = 4096
)

type wsConnection struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
	done     chan struct{}
	hub      *hub
	logger   *slog.Logger

	closeOnce sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(mux.Vars(r)["clientID"])
	if clientID == "" {
		http.Error(w, "Invalid client ID", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	wsConn := &wsConnection{
		conn:     conn,
		clientID: clientID,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		hub:      s.hub,
		logger:   s.logger,
	}

	s.hub.register(wsConn)
	s.logger.Info("Push channel subscriber connected", "clientID", clientID, "remote", r.RemoteAddr)

	go wsConn.writePump()
	go wsConn.readPump()
}

// enqueue hands data to the write pump without blocking.
func (c *wsConnection) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsConnection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump answers heartbeat tokens and discards everything else.
func (c *wsConnection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.logger.Info("Push channel subscriber disconnected", "clientID", c.clientID)
	}()

	c.conn.SetReadLimit(maxInbound)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if string(data) == message.HeartbeatToken {
			if !c.enqueue([]byte(message.HeartbeatReply)) {
				c.logger.Warn("Dropped heartbeat reply", "clientID", c.clientID)
			}
		}
	}
}
