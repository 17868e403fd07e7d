package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/heaming/zipper-sub001/domain/event"
	"github.com/heaming/zipper-sub001/presence"
)

// PresenceSweeper periodically evicts stale typing entries and emits
// the corresponding stopped events. A lost enqueue is acceptable: the
// entry is already evicted, and readers of the typing set converge on
// the next query.
type PresenceSweeper struct {
	log      *slog.Logger
	tracker  *presence.Tracker
	events   chan<- event.DomainEvent
	interval time.Duration
}

func NewPresenceSweeper(
	log *slog.Logger,
	tracker *presence.Tracker,
	events chan<- event.DomainEvent,
	interval time.Duration,
) *PresenceSweeper {
	return &PresenceSweeper{log: log, tracker: tracker, events: events, interval: interval}
}

func (w *PresenceSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence sweeper")
			return nil
		case now := <-ticker.C:
			for _, expired := range w.tracker.Sweep(now) {
				stopped := event.TypingStopped{Room: expired.Room, UserID: expired.UserID}
				select {
				case w.events <- stopped:
				default:
					w.log.Debug("Events channel full, typing-stopped lost",
						"room", expired.Room, "user", expired.UserID)
				}
			}
		}
	}
}
