package backend

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/bosley/lyrical/metrics"
)

// hub tracks the push channel subscribers of every client id.
type hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string][]*wsConnection
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:      logger,
		subscribers: make(map[string][]*wsConnection),
	}
}

func (h *hub) register(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[c.clientID] = append(h.subscribers[c.clientID], c)
	metrics.BackendSubscribers.Inc()
}

func (h *hub) unregister(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connections := h.subscribers[c.clientID]
	for i, conn := range connections {
		if conn == c {
			connections = append(connections[:i:i], connections[i+1:]...)
			metrics.BackendSubscribers.Dec()
			break
		}
	}

	if len(connections) == 0 {
		delete(h.subscribers, c.clientID)
	} else {
		h.subscribers[c.clientID] = connections
	}
}

// publish queues text for every subscriber of clientID and returns how many
// accepted it.
func (h *hub) publish(clientID, text string) int {
	h.mu.RLock()
	connections := h.subscribers[clientID]
	h.mu.RUnlock()

	if len(connections) == 0 {
		h.logger.Debug("No subscribers found for client", "clientID", clientID)
		return 0
	}

	delivered := 0
	for i, conn := range connections {
		if conn.enqueue([]byte(text)) {
			delivered++
			continue
		}
		h.logger.Warn("Failed to send to subscriber - channel full",
			"clientID", clientID,
			"connectionIndex", i)
	}
	return delivered
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, connections := range h.subscribers {
		n += len(connections)
	}
	return n
}

func (h *hub) clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *hub) closeAll() {
	h.mu.RLock()
	var all []*wsConnection
	for _, connections := range h.subscribers {
		all = append(all, connections...)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}
