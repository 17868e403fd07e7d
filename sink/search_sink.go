package sink

import (
	"context"
	"log/slog"

	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
)

type indexer interface {
	Add(message domain.Message) error
}

// SearchSink feeds posted messages into the full-text index. Typing
// events are ignored; they carry no searchable content.
type SearchSink struct {
	index indexer
	log   *slog.Logger
}

func NewSearchSink(index indexer, log *slog.Logger) *SearchSink {
	return &SearchSink{index: index, log: log}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	return s.index.Add(domain.Message{
		ID:        posted.ID,
		RoomID:    posted.Room,
		SenderID:  posted.SenderID,
		Nickname:  posted.Nickname,
		Content:   posted.Content,
		Type:      posted.Type,
		ImageURL:  posted.ImageURL,
		CreatedAt: posted.At,
	})
}
