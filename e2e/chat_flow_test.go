// Package e2e exercises the full in-process pipeline: registry,
// ingestion, persistence, fanout and pagination wired together with
// real storage, without the websocket transport.
package e2e

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/moderation"
	"github.com/heaming/zipper-sub001/presence"
	"github.com/heaming/zipper-sub001/repositories"
	"github.com/heaming/zipper-sub001/runtime"
	"github.com/heaming/zipper-sub001/runtime/workers"
	"github.com/heaming/zipper-sub001/search"
	"github.com/heaming/zipper-sub001/services"
	"github.com/heaming/zipper-sub001/sink"
)

type ChatFlowSuite struct {
	suite.Suite
	log      *slog.Logger
	db       *badger.DB
	registry *runtime.Registry
	tracker  *presence.Tracker
	service  *services.ChatService
	events   chan event.DomainEvent
	cancel   context.CancelFunc
}

func TestChatFlowSuite(t *testing.T) {
	suite.Run(t, new(ChatFlowSuite))
}

func (s *ChatFlowSuite) SetupTest() {
	s.log = logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db

	index, err := search.NewIndex(s.T().TempDir(), s.log)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = index.Close() })

	moderator, err := moderation.NewModerator(moderation.DefaultWords(), '*', s.log)
	s.Require().NoError(err)

	s.registry = runtime.NewRegistry()
	s.tracker = presence.NewTracker(7 * time.Second)
	s.events = make(chan event.DomainEvent, 64)

	messages := repositories.NewMessageRepository(db, s.log)
	rooms := repositories.NewRoomRepository(db)
	s.Require().NoError(rooms.Save(domain.Room{ID: "building:1", Type: domain.RoomTypeBuilding, Name: "Tower A"}))

	ingestor := services.NewIngestor(s.log, s.registry, rooms, messages, moderator, s.events,
		services.IngestorConfig{MaxContentLength: 4000, EnqueueTimeout: time.Second})
	s.service = services.NewChatService(
		s.log, s.registry, rooms, messages, s.tracker, ingestor, index, s.events, 50)

	fanout := workers.NewFanout(s.log, s.registry, s.events, time.Second).
		AddPermanent(sink.NewSearchSink(index, s.log))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() { _ = fanout.Run(ctx) }()
}

func (s *ChatFlowSuite) TearDownTest() {
	s.cancel()
	s.Require().NoError(s.db.Close())
}

func (s *ChatFlowSuite) connect(connID domain.ConnectionID, userID, nickname string) *sink.ConnSink {
	connSink := sink.NewConnSink(connID, 16)
	s.service.Connected(connID, domain.Identity{UserID: userID, Nickname: nickname}, connSink)
	return connSink
}

func (s *ChatFlowSuite) receive(connSink *sink.ConnSink) event.DomainEvent {
	select {
	case evt := <-connSink.Events:
		return evt
	case <-time.After(2 * time.Second):
		s.Require().Fail("No event received in time")
		return nil
	}
}

func (s *ChatFlowSuite) TestMessageReachesAllMembersIdentically() {
	sinkA := s.connect("ca", "alice", "Alice")
	sinkB := s.connect("cb", "bob", "Bob")
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "ca"}))
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "cb"}))

	// When Alice sends a message
	sent, err := s.service.Send(context.Background(), domain.SendMessageCommand{
		Room: "building:1", Connection: "ca",
		Sender:  domain.Identity{UserID: "alice", Nickname: "Alice"},
		Content: "hi", Type: domain.MessageTypeText,
	})
	s.Require().NoError(err)

	// Then both members, sender included, receive the identical event
	evtA := s.receive(sinkA).(event.MessagePosted)
	evtB := s.receive(sinkB).(event.MessagePosted)
	s.Equal(evtA, evtB)
	s.Equal(sent.ID, evtA.ID)
	s.Equal(sent.CreatedAt, evtA.At)

	// And the message is in history
	page, err := s.service.History("building:1", "", 50)
	s.Require().NoError(err)
	s.Require().Len(page.Messages, 1)
	s.Equal(sent.ID, page.Messages[0].ID)
}

func (s *ChatFlowSuite) TestDisconnectedMemberMissesNothingDurable() {
	sinkA := s.connect("ca", "alice", "Alice")
	s.connect("cb", "bob", "Bob")
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "ca"}))
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "cb"}))

	// Bob drops off
	s.service.Disconnected("cb")

	_, err := s.service.Send(context.Background(), domain.SendMessageCommand{
		Room: "building:1", Connection: "ca",
		Sender:  domain.Identity{UserID: "alice", Nickname: "Alice"},
		Content: "anyone there?", Type: domain.MessageTypeText,
	})
	s.Require().NoError(err)
	s.receive(sinkA)

	// Bob reconnects and catches up via history
	page, err := s.service.History("building:1", "", 50)
	s.Require().NoError(err)
	s.Require().Len(page.Messages, 1)
	s.Equal("anyone there?", page.Messages[0].Content)
}

func (s *ChatFlowSuite) TestNonMemberSendPersistsNothing() {
	s.connect("ca", "alice", "Alice")

	_, err := s.service.Send(context.Background(), domain.SendMessageCommand{
		Room: "building:1", Connection: "ca",
		Sender:  domain.Identity{UserID: "alice", Nickname: "Alice"},
		Content: "sneaky", Type: domain.MessageTypeText,
	})
	s.Require().ErrorIs(err, apperrors.ErrNotAMember)

	page, err := s.service.History("building:1", "", 50)
	s.Require().NoError(err)
	s.Empty(page.Messages)
}

func (s *ChatFlowSuite) TestTypingFlowSkipsOriginator() {
	sinkA := s.connect("ca", "alice", "Alice")
	sinkB := s.connect("cb", "bob", "Bob")
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "ca"}))
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "cb"}))

	s.Require().NoError(s.service.TypingStart(domain.TypingStartCommand{
		Room: "building:1", Connection: "ca",
		Sender: domain.Identity{UserID: "alice", Nickname: "Alice"},
	}))

	// Bob sees the typing indicator, Alice does not hear herself
	evt := s.receive(sinkB).(event.TypingStarted)
	s.Equal("alice", evt.UserID)
	s.Empty(sinkA.Events)

	s.Require().NoError(s.service.TypingStop(domain.TypingStopCommand{
		Room: "building:1", Connection: "ca",
		Sender: domain.Identity{UserID: "alice"},
	}))
	stopped := s.receive(sinkB).(event.TypingStopped)
	s.Equal("alice", stopped.UserID)
}

func (s *ChatFlowSuite) TestOrderPreservedPerRoom() {
	sinkA := s.connect("ca", "alice", "Alice")
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "ca"}))

	contents := []string{"one", "two", "three", "four", "five"}
	for _, content := range contents {
		_, err := s.service.Send(context.Background(), domain.SendMessageCommand{
			Room: "building:1", Connection: "ca",
			Sender:  domain.Identity{UserID: "alice", Nickname: "Alice"},
			Content: content, Type: domain.MessageTypeText,
		})
		s.Require().NoError(err)
	}

	// Delivery order matches send order
	for _, content := range contents {
		evt := s.receive(sinkA).(event.MessagePosted)
		s.Equal(content, evt.Content)
	}

	// History is newest first
	page, err := s.service.History("building:1", "", 50)
	s.Require().NoError(err)
	s.Require().Len(page.Messages, 5)
	s.Equal("five", page.Messages[0].Content)
	s.Equal("one", page.Messages[4].Content)
}

func (s *ChatFlowSuite) TestSearchFindsPostedMessage() {
	sinkA := s.connect("ca", "alice", "Alice")
	s.Require().NoError(s.service.Join(domain.JoinRoomCommand{Room: "building:1", Connection: "ca"}))

	_, err := s.service.Send(context.Background(), domain.SendMessageCommand{
		Room: "building:1", Connection: "ca",
		Sender:  domain.Identity{UserID: "alice", Nickname: "Alice"},
		Content: "the elevator is broken", Type: domain.MessageTypeText,
	})
	s.Require().NoError(err)
	s.receive(sinkA)

	// The search sink indexed the message during fanout
	s.Require().Eventually(func() bool {
		hits, err := s.service.SearchMessages(context.Background(), "building:1", "elevator", 10)
		return err == nil && len(hits) == 1
	}, 2*time.Second, 50*time.Millisecond)
}
