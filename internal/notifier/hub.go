// Package notifier delivers order lifecycle events to connected viewers.
// Every event goes to every open connection; viewers discard what they are
// not watching. There is no queuing or replay: a viewer that reconnects
// re-fetches current state through the query API.
package notifier

import (
	"context"
	"sync"

	"tableserve/internal/domain"
	"tableserve/internal/logging"
	"tableserve/internal/metrics"
)

var logger = logging.With("notifier")

// Hub is the registry of open viewer connections. Add, remove, and broadcast
// are safe to interleave; a client pruned mid-broadcast never corrupts the
// set or fails the broadcast for others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	onConnect    func(count int)
	onDisconnect func(count int)
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// OnConnect registers a hook invoked with the new client count after each
// connect. Set before the hub starts serving.
func (h *Hub) OnConnect(fn func(count int)) { h.onConnect = fn }

// OnDisconnect registers the disconnect counterpart.
func (h *Hub) OnDisconnect(fn func(count int)) { h.onDisconnect = fn }

// add registers c unless the hub has already shut down. A connection
// upgraded after the shutdown sweep would otherwise never be closed.
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketClients.Set(float64(n))
	logger.Info().Int("total_clients", n).Msg("viewer connected")
	if h.onConnect != nil {
		h.onConnect(n)
	}
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.WebsocketClients.Set(float64(n))
	logger.Info().Int("total_clients", n).Msg("viewer disconnected")
	if h.onDisconnect != nil {
		h.onDisconnect(n)
	}
}

// Publish broadcasts the event to every open connection. Clients whose send
// buffer is full or already closed are pruned silently; delivery is
// best-effort and at-most-once per connection. Always returns nil so the
// lifecycle path never sees a delivery failure.
func (h *Hub) Publish(_ context.Context, ev domain.OrderEvent) error {
	h.mu.Lock()
	var dropped []*Client
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if len(dropped) > 0 {
		metrics.BroadcastDrops.Add(float64(len(dropped)))
		metrics.WebsocketClients.Set(float64(n))
		logger.Warn().Int("pruned", len(dropped)).Msg("pruned unresponsive viewers during broadcast")
	}
	return nil
}

// ClientCount reports the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is done, then closes every open connection and
// refuses any that arrive later.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	n := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	metrics.WebsocketClients.Set(0)
	logger.Info().Int("clients_closed", n).Msg("notifier hub stopped")
	return ctx.Err()
}
