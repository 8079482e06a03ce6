// Package realtime is the viewer side of the order event channel: a
// receive-only WebSocket consumer that reconnects automatically.
//
// Events are hints, not state. Missed events during a disconnect are not
// replayed, so consumers should re-fetch current state through the REST API
// whenever an event arrives or a connection is re-established.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// ReconnectDelay is the fixed wait between reconnection attempts. Retries
// continue indefinitely at this flat interval.
const ReconnectDelay = 3 * time.Second

// Event is the wire form of an order lifecycle event as broadcast on /ws.
type Event struct {
	EventType    string    `json:"event_type"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	TableNumber  *int      `json:"table_number,omitempty"`
	NewStatus    string    `json:"new_status,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Client consumes order events from a tableserve /ws endpoint.
type Client struct {
	url     string
	onEvent func(Event)
	// onConnect fires after every successful (re)connection, before any
	// event is dispatched. Viewers resynchronize here.
	onConnect func()
}

func NewClient(url string, onEvent func(Event)) *Client {
	return &Client{url: url, onEvent: onEvent}
}

// OnConnect sets the resynchronization hook. Call before Run.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// Run connects and dispatches events until ctx is done, reconnecting after
// ReconnectDelay on any failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			select {
			case <-time.After(ReconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if c.onConnect != nil {
		c.onConnect()
	}

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			// Malformed frame; skip rather than drop the connection.
			continue
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}
