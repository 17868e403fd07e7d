package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain/event"
)

// Fanout is the single dispatch loop between the ingestion side and the
// per-connection sinks. Exactly one Fanout drains the events channel,
// which is what serializes delivery order per room: events enqueued in
// room order are offered to every member's sink in that same order.
//
// Delivery is best effort. A sink that fails or times out is logged and
// skipped; it never blocks the loop or the other members.
type Fanout struct {
	log             *slog.Logger
	registry        contract.IRegistry
	events          <-chan event.DomainEvent
	permanent       []contract.EventSink
	deliveryTimeout time.Duration
}

func NewFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events <-chan event.DomainEvent,
	deliveryTimeout time.Duration,
) *Fanout {
	return &Fanout{
		log:             log,
		registry:        registry,
		events:          events,
		deliveryTimeout: deliveryTimeout,
	}
}

// AddPermanent attaches sinks that observe every event regardless of
// room membership, like the search index.
func (w *Fanout) AddPermanent(sinks ...contract.EventSink) *Fanout {
	w.permanent = append(w.permanent, sinks...)
	return w
}

func (w *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt := <-w.events:
			w.Dispatch(ctx, evt)
		}
	}
}

// Dispatch delivers one event to the permanent sinks, then to every
// member of its room. Typing events skip the originator: the typist
// already knows.
func (w *Fanout) Dispatch(ctx context.Context, evt event.DomainEvent) {
	for _, s := range w.permanent {
		w.deliver(ctx, s, evt)
	}

	originator := typingOriginator(evt)
	for _, rs := range w.registry.SinksForRoom(evt.RoomID()) {
		if originator != "" && rs.UserID == originator {
			continue
		}
		if err := w.consume(ctx, rs.Sink, evt); err != nil {
			w.log.Warn("Delivery failed, skipping member",
				"connection", rs.Connection, "room", evt.RoomID(), "error", err)
		}
	}
}

func (w *Fanout) deliver(ctx context.Context, s contract.EventSink, evt event.DomainEvent) {
	if err := w.consume(ctx, s, evt); err != nil {
		w.log.Warn("Permanent sink failed", "room", evt.RoomID(), "error", err)
	}
}

func (w *Fanout) consume(ctx context.Context, s contract.EventSink, evt event.DomainEvent) error {
	deliveryCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	defer cancel()
	return s.Consume(deliveryCtx, evt)
}

func typingOriginator(evt event.DomainEvent) string {
	switch e := evt.(type) {
	case event.TypingStarted:
		return e.UserID
	case event.TypingStopped:
		return e.UserID
	default:
		return ""
	}
}
