package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain/event"
	"github.com/heaming/zipper-sub001/mocks"
)

func TestFanout_DeliversToPermanentAndRoomSinks(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	permanentSink := mocks.NewMockEventSink(ctrl)
	memberSink := mocks.NewMockEventSink(ctrl)

	evt := event.MessagePosted{ID: uuid.New(), Room: "r1", SenderID: "u1", Nickname: "alice", Content: "hi"}

	// Given one room with two members
	mockRegistry.EXPECT().SinksForRoom(evt.Room).Return([]contract.RoomSink{
		{Connection: "c1", UserID: "u1", Sink: memberSink},
		{Connection: "c2", UserID: "u2", Sink: memberSink},
	}).Times(1)

	// Then the permanent sink and both members are consumed.
	// The sender is a member like any other for posted messages.
	permanentSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	memberSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(2)

	worker := NewFanout(log, mockRegistry, nil, time.Second).AddPermanent(permanentSink)
	worker.Dispatch(context.Background(), evt)
}

func TestFanout_TypingSkipsOriginator(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	typistSink := mocks.NewMockEventSink(ctrl)
	otherSink := mocks.NewMockEventSink(ctrl)

	evt := event.TypingStarted{Room: "r1", UserID: "u1", Nickname: "alice"}

	// The typist is connected twice; neither connection hears its own typing
	mockRegistry.EXPECT().SinksForRoom(evt.Room).Return([]contract.RoomSink{
		{Connection: "c1", UserID: "u1", Sink: typistSink},
		{Connection: "c2", UserID: "u1", Sink: typistSink},
		{Connection: "c3", UserID: "u2", Sink: otherSink},
	}).Times(1)

	otherSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker := NewFanout(log, mockRegistry, nil, time.Second)
	worker.Dispatch(context.Background(), evt)
}

func TestFanout_FailingSinkDoesNotStopOthers(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slowSink := mocks.NewMockEventSink(ctrl)
	healthySink := mocks.NewMockEventSink(ctrl)

	evt := event.MessagePosted{ID: uuid.New(), Room: "r1", SenderID: "u1", Content: "hi"}

	mockRegistry.EXPECT().SinksForRoom(evt.Room).Return([]contract.RoomSink{
		{Connection: "c1", UserID: "u1", Sink: slowSink},
		{Connection: "c2", UserID: "u2", Sink: healthySink},
	}).Times(1)

	// Given the first sink blocks until the delivery timeout hits
	slowSink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Times(1)
	healthySink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker := NewFanout(log, mockRegistry, nil, 20*time.Millisecond)
	worker.Dispatch(context.Background(), evt)
}

func TestFanout_RunDrainsChannelUntilCanceled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	memberSink := mocks.NewMockEventSink(ctrl)

	events := make(chan event.DomainEvent, 2)
	evt := event.MessagePosted{ID: uuid.New(), Room: "r1", SenderID: "u1", Content: "hi"}

	delivered := make(chan struct{})
	mockRegistry.EXPECT().SinksForRoom(evt.Room).Return([]contract.RoomSink{
		{Connection: "c1", UserID: "u1", Sink: memberSink},
	}).Times(1)
	memberSink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.DomainEvent) error {
			close(delivered)
			return nil
		}).
		Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	worker := NewFanout(log, mockRegistry, events, time.Second)

	done := make(chan struct{})
	go func() {
		req.NoError(worker.Run(ctx))
		close(done)
	}()

	events <- evt

	select {
	case <-delivered:
	case <-time.After(time.Second):
		req.Fail("Event was not delivered in time")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Fanout did not stop on cancellation")
	}
}
