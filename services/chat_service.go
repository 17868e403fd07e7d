package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/presence"
	"github.com/heaming/zipper-sub001/repositories"
	"github.com/heaming/zipper-sub001/search"
)

// Roster is the registry surface the chat service drives: the fanout
// read side plus connection lifecycle.
type Roster interface {
	contract.IRegistry
	Register(connID domain.ConnectionID, identity domain.Identity, sink contract.EventSink)
	Join(connID domain.ConnectionID, roomID domain.RoomID) error
	Leave(connID domain.ConnectionID, roomID domain.RoomID)
	Unregister(connID domain.ConnectionID) []domain.RoomID
	Identity(connID domain.ConnectionID) (domain.Identity, bool)
}

type IChatService interface {
	Connected(connID domain.ConnectionID, identity domain.Identity, sink contract.EventSink)
	Join(cmd domain.JoinRoomCommand) error
	Leave(cmd domain.LeaveRoomCommand)
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	TypingStart(cmd domain.TypingStartCommand) error
	TypingStop(cmd domain.TypingStopCommand) error
	Disconnected(connID domain.ConnectionID)
	History(roomID domain.RoomID, before string, limit int) (HistoryPage, error)
	SearchMessages(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]search.Hit, error)
}

// HistoryPage is one page of room history, newest first.
type HistoryPage struct {
	Messages   []domain.Message
	HasMore    bool
	NextCursor *string
}

// ChatService coordinates the registry, the presence tracker, the
// ingestion path and the read side behind one surface the transports
// call into.
type ChatService struct {
	log      *slog.Logger
	roster   Roster
	rooms    contract.RoomDirectory
	store    contract.MessageStore
	tracker  *presence.Tracker
	ingestor *Ingestor
	searcher search.ISearcher
	events   chan<- event.DomainEvent
	maxPage  int
}

func NewChatService(
	log *slog.Logger,
	roster Roster,
	rooms contract.RoomDirectory,
	store contract.MessageStore,
	tracker *presence.Tracker,
	ingestor *Ingestor,
	searcher search.ISearcher,
	events chan<- event.DomainEvent,
	maxPage int,
) *ChatService {
	return &ChatService{
		log:      log,
		roster:   roster,
		rooms:    rooms,
		store:    store,
		tracker:  tracker,
		ingestor: ingestor,
		searcher: searcher,
		events:   events,
		maxPage:  maxPage,
	}
}

// Connected registers a freshly authenticated connection and the sink
// its write pump drains.
func (s *ChatService) Connected(connID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) {
	s.roster.Register(connID, identity, sink)
}

// Join subscribes the connection to an existing room. Joining a room
// twice is a no-op.
func (s *ChatService) Join(cmd domain.JoinRoomCommand) error {
	if _, err := s.rooms.Get(cmd.Room); err != nil {
		return err
	}
	return s.roster.Join(cmd.Connection, cmd.Room)
}

// Leave drops the membership. If the user was mid-typing in that room,
// the remaining members get the stopped event.
func (s *ChatService) Leave(cmd domain.LeaveRoomCommand) {
	if identity, ok := s.roster.Identity(cmd.Connection); ok {
		if s.tracker.MarkStopped(cmd.Room, identity.UserID) {
			s.emitPresence(event.TypingStopped{Room: cmd.Room, UserID: identity.UserID})
		}
	}
	s.roster.Leave(cmd.Connection, cmd.Room)
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.ingestor.Ingest(ctx, cmd)
}

// TypingStart refreshes the typing state and broadcasts the started
// event only on the idle-to-typing transition, not on every heartbeat.
func (s *ChatService) TypingStart(cmd domain.TypingStartCommand) error {
	if !s.roster.IsMember(cmd.Connection, cmd.Room) {
		return fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, cmd.Sender.UserID, cmd.Room)
	}
	if s.tracker.MarkTyping(cmd.Room, cmd.Sender.UserID, cmd.Sender.Nickname) {
		s.emitPresence(event.TypingStarted{
			Room:     cmd.Room,
			UserID:   cmd.Sender.UserID,
			Nickname: cmd.Sender.Nickname,
		})
	}
	return nil
}

// TypingStop clears the typing state. Stopping when not typing is a
// silent no-op.
func (s *ChatService) TypingStop(cmd domain.TypingStopCommand) error {
	if !s.roster.IsMember(cmd.Connection, cmd.Room) {
		return fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, cmd.Sender.UserID, cmd.Room)
	}
	if s.tracker.MarkStopped(cmd.Room, cmd.Sender.UserID) {
		s.emitPresence(event.TypingStopped{Room: cmd.Room, UserID: cmd.Sender.UserID})
	}
	return nil
}

// Disconnected tears down everything tied to the connection: all
// memberships and any typing state, emitting stopped events as if the
// user had stopped typing explicitly.
func (s *ChatService) Disconnected(connID domain.ConnectionID) {
	identity, known := s.roster.Identity(connID)
	rooms := s.roster.Unregister(connID)
	if !known {
		return
	}
	for _, room := range rooms {
		if s.tracker.MarkStopped(room, identity.UserID) {
			s.emitPresence(event.TypingStopped{Room: room, UserID: identity.UserID})
		}
	}
}

// History serves one page of room history. The before cursor is the
// opaque value returned by the previous page; limit is clamped to the
// configured maximum.
func (s *ChatService) History(roomID domain.RoomID, before string, limit int) (HistoryPage, error) {
	if _, err := s.rooms.Get(roomID); err != nil {
		return HistoryPage{}, err
	}

	cursor, err := repositories.Cursor(before)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	if limit <= 0 || limit > s.maxPage {
		limit = s.maxPage
	}

	messages, hasMore, next, err := s.store.Page(roomID, cursor, limit)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{Messages: messages, HasMore: hasMore, NextCursor: next}, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, roomID domain.RoomID, query string, limit int) ([]search.Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", apperrors.ErrValidation)
	}
	if _, err := s.rooms.Get(roomID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxPage {
		limit = s.maxPage
	}
	return s.searcher.Search(ctx, roomID, query, limit)
}

// emitPresence is fire and forget. Presence is ephemeral; under
// saturation dropping a typing event beats stalling a send.
func (s *ChatService) emitPresence(evt event.DomainEvent) {
	select {
	case s.events <- evt:
	default:
		s.log.Debug("Events channel full, presence event lost", "room", evt.RoomID())
	}
}
