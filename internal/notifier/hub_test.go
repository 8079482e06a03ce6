package notifier

import (
	"context"
	"testing"
	"time"

	"tableserve/internal/domain"
)

func event(id string) domain.OrderEvent {
	return domain.OrderEvent{
		EventType:    domain.EventOrderStatusChanged,
		OrderID:      id,
		RestaurantID: "rest-1",
		NewStatus:    domain.StatusReady,
		Timestamp:    time.Now().UTC(),
	}
}

// testClient attaches a pump-less client to the hub; broadcasts land in its
// send channel directly.
func testClient(h *Hub) *Client {
	c := newClient(h, nil)
	h.add(c)
	return c
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := NewHub()
	a := testClient(h)
	b := testClient(h)

	if err := h.Publish(context.Background(), event("ord-1")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.send:
			if ev.OrderID != "ord-1" {
				t.Errorf("unexpected event %+v", ev)
			}
		default:
			t.Error("client did not receive the broadcast")
		}
	}
}

func TestHub_SlowClientPrunedOthersStillDelivered(t *testing.T) {
	h := NewHub()
	slow := testClient(h)
	healthy := testClient(h)

	// Fill the slow client's buffer so the next broadcast cannot be accepted.
	for i := 0; i < sendBufferSize; i++ {
		slow.send <- event("filler")
	}

	if err := h.Publish(context.Background(), event("ord-2")); err != nil {
		t.Fatalf("publish must not fail on a slow client: %v", err)
	}

	if h.ClientCount() != 1 {
		t.Errorf("expected slow client pruned, count = %d", h.ClientCount())
	}

	// The healthy client still got the event.
	select {
	case ev := <-healthy.send:
		if ev.OrderID != "ord-2" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Error("healthy client did not receive the broadcast")
	}

	// Pruning closed the slow client's channel.
	for i := 0; i < sendBufferSize; i++ {
		<-slow.send
	}
	if _, open := <-slow.send; open {
		t.Error("expected pruned client's channel to be closed")
	}
}

func TestHub_ConnectDisconnectHooks(t *testing.T) {
	h := NewHub()

	var connects, disconnects []int
	h.OnConnect(func(n int) { connects = append(connects, n) })
	h.OnDisconnect(func(n int) { disconnects = append(disconnects, n) })

	a := testClient(h)
	testClient(h)
	h.remove(a)

	if len(connects) != 2 || connects[0] != 1 || connects[1] != 2 {
		t.Errorf("unexpected connect counts: %v", connects)
	}
	if len(disconnects) != 1 || disconnects[0] != 1 {
		t.Errorf("unexpected disconnect counts: %v", disconnects)
	}
}

func TestHub_RemoveTwiceIsSafe(t *testing.T) {
	h := NewHub()
	c := testClient(h)

	h.remove(c)
	h.remove(c) // read pump and prune can both try

	if h.ClientCount() != 0 {
		t.Errorf("expected empty hub, count = %d", h.ClientCount())
	}
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub()
	c := testClient(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if _, open := <-c.send; open {
		t.Error("expected client channel closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected empty hub after shutdown, count = %d", h.ClientCount())
	}
}

// A connection upgraded after the shutdown sweep must be refused, not
// registered into a set nobody will ever close.
func TestHub_AddAfterShutdownRefused(t *testing.T) {
	h := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if h.add(newClient(h, nil)) {
		t.Fatal("expected add to be refused after shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected empty hub, count = %d", h.ClientCount())
	}
}

func TestFanout_FailingTargetDoesNotBlockOthers(t *testing.T) {
	h := NewHub()
	c := testClient(h)

	f := NewFanout(failingPublisher{}, h)
	if err := f.Publish(context.Background(), event("ord-3")); err != nil {
		t.Fatalf("fanout must swallow target errors, got %v", err)
	}

	select {
	case ev := <-c.send:
		if ev.OrderID != "ord-3" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Error("second target did not receive the event")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, domain.OrderEvent) error {
	return context.DeadlineExceeded
}
