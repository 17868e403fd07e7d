// Package domain contains core concepts of the room messaging system.
// This file defines Message values and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the payload kind of a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
)

// Message represents an immutable chat message. ID and CreatedAt are
// server-assigned at ingestion; client-supplied timestamps are never
// trusted. Per-room order is (CreatedAt, ID ascending).
type Message struct {
	ID       uuid.UUID
	RoomID   RoomID
	SenderID string
	Nickname string
	Content  string
	Type     MessageType
	ImageURL string
	// Language is the detected ISO 639-1 code of the content, empty when
	// detection was inconclusive. Informational only.
	Language  string
	CreatedAt time.Time
}
