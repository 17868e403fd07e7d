// Package ws is the websocket transport: one goroutine pair per
// connection, JSON envelopes on the wire, and the chat service behind
// them.
package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

// Client to server events.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Server to client events.
const (
	EventNewMessage        = "new-message"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventError             = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	Type     string `json:"messageType"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type newMessagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	Type      string    `json:"messageType"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

// toEnvelope maps a domain event to its wire frame. Unknown event types
// return ok=false and are skipped by the write pump.
func toEnvelope(evt event.DomainEvent) (Envelope, bool) {
	switch e := evt.(type) {
	case event.MessagePosted:
		return envelope(EventNewMessage, newMessagePayload{
			ID:        e.ID.String(),
			RoomID:    string(e.Room),
			SenderID:  e.SenderID,
			Nickname:  e.Nickname,
			Content:   e.Content,
			Type:      string(e.Type),
			ImageURL:  e.ImageURL,
			CreatedAt: e.At,
		}), true
	case event.TypingStarted:
		return envelope(EventUserTyping, typingPayload{
			RoomID:   string(e.Room),
			UserID:   e.UserID,
			Nickname: e.Nickname,
		}), true
	case event.TypingStopped:
		return envelope(EventUserStoppedTyping, typingPayload{
			RoomID: string(e.Room),
			UserID: e.UserID,
		}), true
	default:
		return Envelope{}, false
	}
}

func errorEnvelope(err error, roomID string) Envelope {
	return envelope(EventError, errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
		RoomID:  roomID,
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, apperrors.ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, apperrors.ErrNotAMember):
		return "NOT_A_MEMBER"
	case errors.Is(err, apperrors.ErrValidation):
		return "VALIDATION_FAILED"
	default:
		return "INTERNAL"
	}
}

func envelope(name string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload types are plain structs; this cannot fail at runtime.
		return Envelope{Event: name}
	}
	return Envelope{Event: name, Data: data}
}
