//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_searcher.go -package=mocks

// Package search maintains a full-text index of posted messages so
// members can search a room's history by content.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"github.com/heaming/zipper-sub001/domain"
)

type ISearcher interface {
	Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]Hit, error)
}

// Hit is one search result. CreatedAt is only as precise as the stored
// RFC 3339 nano field.
type Hit struct {
	MessageID uuid.UUID
	RoomID    domain.RoomID
	SenderID  string
	Nickname  string
	Content   string
	CreatedAt time.Time
}

// Index wraps a bluge writer. Indexing happens asynchronously on the
// fanout path, so a message can be briefly searchable-after-visible.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}

// Add indexes one message, replacing any previous document with the
// same id so redelivery stays idempotent.
func (i *Index) Add(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("room", string(message.RoomID)).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", message.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("nickname", message.Nickname).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("created_at", message.CreatedAt.Format(time.RFC3339Nano)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search matches the query against message content, scoped to one room.
func (i *Index) Search(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("failed to close index reader", slog.String("error", err.Error()))
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, err := uuid.Parse(string(value)); err == nil {
					hit.MessageID = id
				}
			case "room":
				hit.RoomID = domain.RoomID(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "nickname":
				hit.Nickname = string(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if at, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.CreatedAt = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
