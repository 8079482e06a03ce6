package notifier

import (
	"context"

	"tableserve/internal/domain"
)

// Publisher is one delivery target for lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

// Fanout sends every event to all of its targets. A failing target is
// logged and skipped; the rest still receive the event, and the caller
// always sees success. One-way dependency: the lifecycle path feeds the
// notifier, never the reverse.
type Fanout struct {
	targets []Publisher
}

func NewFanout(targets ...Publisher) *Fanout {
	return &Fanout{targets: targets}
}

func (f *Fanout) Publish(ctx context.Context, ev domain.OrderEvent) error {
	for _, t := range f.targets {
		if err := t.Publish(ctx, ev); err != nil {
			logger.Error().Err(err).
				Str("event_type", string(ev.EventType)).
				Str("order_id", ev.OrderID).
				Msg("event target failed")
		}
	}
	return nil
}
