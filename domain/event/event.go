// Package event defines the tagged union of events delivered to connected
// clients. The transport layer maps each variant to its wire payload.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/heaming/zipper-sub001/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is emitted after a message has been durably persisted.
// The sender receives it like any other member; that delivery is the
// send confirmation.
type MessagePosted struct {
	ID       uuid.UUID
	Room     domain.RoomID
	SenderID string
	Nickname string
	Content  string
	Type     domain.MessageType
	ImageURL string
	At       time.Time
}

func (m MessagePosted) RoomID() domain.RoomID { return m.Room }

// TypingStarted is ephemeral presence state, broadcast to the other
// members of the room, never back to the typist.
type TypingStarted struct {
	Room     domain.RoomID
	UserID   string
	Nickname string
}

func (t TypingStarted) RoomID() domain.RoomID { return t.Room }

// TypingStopped is emitted on an explicit typing-stop, on idle expiry,
// or when the typist disconnects. The three are equivalent.
type TypingStopped struct {
	Room   domain.RoomID
	UserID string
}

func (t TypingStopped) RoomID() domain.RoomID { return t.Room }
