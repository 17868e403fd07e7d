//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/heaming/zipper-sub001/domain"
)

type IMessageRepository interface {
	Store(message domain.Message) error
	Page(roomID domain.RoomID, before *string, limit int) ([]domain.Message, bool, *string, error)
}

// MessageRepository persists messages in BadgerDB.
//
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Break ties with the message id if two messages land on the same
//     nanosecond, which also fixes the pagination order.
//
// The "{timestamp_padded}:{uuid}" suffix doubles as the opaque page
// cursor handed to clients: it resolves to "strictly older than this
// message", so inserts arriving during pagination (always newer) can
// never duplicate or skip entries already returned.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// record is the stored shape of a message, kept separate from the domain
// type so the persisted layout can evolve on its own.
type record struct {
	ID       uuid.UUID          `json:"id"`
	Room     string             `json:"room"`
	SenderID string             `json:"sender_id"`
	Nickname string             `json:"nickname"`
	Content  string             `json:"content"`
	Type     domain.MessageType `json:"type"`
	ImageURL string             `json:"image_url,omitempty"`
	Language string             `json:"lang,omitempty"`
	At       int64              `json:"at"` // UnixNano
}

func (m *MessageRepository) Store(message domain.Message) error {
	key := messageKey(message.RoomID, message.CreatedAt, message.ID)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// Page retrieves up to limit messages of a room strictly older than the
// cursor, newest first, using a reverse prefix scan. A nil cursor starts
// from the most recent message. The second return value reports whether
// older messages remain; the third is the cursor for the next page.
func (m *MessageRepository) Page(roomID domain.RoomID, before *string, limit int) ([]domain.Message, bool, *string, error) {
	if limit <= 0 {
		return nil, false, nil, nil
	}

	prefixStr := fmt.Sprintf("msg:%s:", roomID)
	prefix := []byte(prefixStr)

	var byteMessages [][]byte
	var lastSuffix string
	hasMore := false

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		if before == nil {
			// Position past any real timestamp, then walk back in time.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		} else {
			seekKey = append(prefix, []byte(*before)...)
		}

		it.Seek(seekKey)

		// A reverse seek lands on the cursor key itself when it still
		// exists; the contract is strictly older, so step past it. When
		// the cursor message was deleted the seek already landed on the
		// next older key and no skip happens.
		if before != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(byteMessages) == limit {
				hasMore = true
				break
			}
			item := it.Item()
			lastSuffix = string(item.Key()[len(prefixStr):])
			if err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, nil, err
	}

	messages := make([]domain.Message, 0, len(byteMessages))
	for _, b := range byteMessages {
		var rec record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, false, nil, err
		}
		messages = append(messages, toMessage(rec))
	}

	var nextCursor *string
	if hasMore && lastSuffix != "" {
		nextCursor = lo.ToPtr(lastSuffix)
	}
	return messages, hasMore, nextCursor, nil
}

// Cursor validates a client-supplied cursor so a crafted value cannot
// escape the room's key range.
func Cursor(raw string) (*string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 19 {
		return nil, fmt.Errorf("malformed cursor %q", raw)
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("malformed cursor %q", raw)
		}
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return nil, fmt.Errorf("malformed cursor %q: %w", raw, err)
	}
	return &raw, nil
}

func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), id)
}

func fromMessage(message domain.Message) record {
	return record{
		ID:       message.ID,
		Room:     string(message.RoomID),
		SenderID: message.SenderID,
		Nickname: message.Nickname,
		Content:  message.Content,
		Type:     message.Type,
		ImageURL: message.ImageURL,
		Language: message.Language,
		At:       message.CreatedAt.UnixNano(),
	}
}

func toMessage(rec record) domain.Message {
	return domain.Message{
		ID:        rec.ID,
		RoomID:    domain.RoomID(rec.Room),
		SenderID:  rec.SenderID,
		Nickname:  rec.Nickname,
		Content:   rec.Content,
		Type:      rec.Type,
		ImageURL:  rec.ImageURL,
		Language:  rec.Language,
		CreatedAt: time.Unix(0, rec.At).UTC(),
	}
}
