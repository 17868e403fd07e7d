// Package sink provides the EventSink implementations fed by the
// fanout worker: one per live connection, plus permanent sinks that
// observe every posted message.
package sink

import (
	"context"
	"fmt"

	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

// ConnSink buffers events for a single connection. The write pump
// drains Events; a full buffer means the client stopped reading, and
// dropping the connection there keeps one slow consumer from stalling
// a whole room.
type ConnSink struct {
	Connection domain.ConnectionID
	Events     chan event.DomainEvent
}

func NewConnSink(connection domain.ConnectionID, buffer int) *ConnSink {
	return &ConnSink{
		Connection: connection,
		Events:     make(chan event.DomainEvent, buffer),
	}
}

// Consume enqueues without blocking. The fanout worker is shared by
// every room, so it must never wait on one connection's buffer.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: connection %s", apperrors.ErrSlowConsumer, s.Connection)
	}
}
