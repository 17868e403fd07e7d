package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

type nopSink struct{}

func (nopSink) Consume(context.Context, event.DomainEvent) error { return nil }

func TestRegistry_JoinLeaveMembership(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", domain.Identity{UserID: "u1", Nickname: "alice"}, nopSink{})

	// Given a registered connection joining a room
	req.NoError(registry.Join("c1", "r1"))
	req.True(registry.IsMember("c1", "r1"))

	// Joining twice is a no-op
	req.NoError(registry.Join("c1", "r1"))
	req.Len(registry.SinksForRoom("r1"), 1)

	// When it leaves
	registry.Leave("c1", "r1")

	// Then membership is gone and leaving again is harmless
	req.False(registry.IsMember("c1", "r1"))
	registry.Leave("c1", "r1")
}

func TestRegistry_JoinUnknownConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	err := registry.Join("ghost", "r1")
	req.ErrorIs(err, apperrors.ErrConnectionClosed)
}

func TestRegistry_UnregisterClearsAllRooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", domain.Identity{UserID: "u1", Nickname: "alice"}, nopSink{})
	req.NoError(registry.Join("c1", "r1"))
	req.NoError(registry.Join("c1", "r2"))

	rooms := registry.Unregister("c1")
	req.ElementsMatch([]domain.RoomID{"r1", "r2"}, rooms)
	req.False(registry.IsMember("c1", "r1"))
	req.False(registry.IsMember("c1", "r2"))

	// Unregistering twice is a no-op
	req.Nil(registry.Unregister("c1"))
	req.Zero(registry.ConnectionCount())
}

func TestRegistry_SinksForRoomCarryIdentity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", domain.Identity{UserID: "u1", Nickname: "alice"}, nopSink{})
	registry.Register("c2", domain.Identity{UserID: "u2", Nickname: "bob"}, nopSink{})
	req.NoError(registry.Join("c1", "r1"))
	req.NoError(registry.Join("c2", "r1"))

	sinks := registry.SinksForRoom("r1")
	req.Len(sinks, 2)

	users := lo.Map(sinks, func(s contract.RoomSink, _ int) string { return s.UserID })
	req.ElementsMatch([]string{"u1", "u2"}, users)
}

func TestRegistry_SameUserTwoConnections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Two tabs of the same user are independent connections
	registry.Register("c1", domain.Identity{UserID: "u1", Nickname: "alice"}, nopSink{})
	registry.Register("c2", domain.Identity{UserID: "u1", Nickname: "alice"}, nopSink{})
	req.NoError(registry.Join("c1", "r1"))
	req.NoError(registry.Join("c2", "r1"))

	registry.Unregister("c1")
	req.True(registry.IsMember("c2", "r1"))
	req.Len(registry.SinksForRoom("r1"), 1)
}

func TestRegistry_Counters(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", domain.Identity{UserID: "u1"}, nopSink{})
	registry.Register("c2", domain.Identity{UserID: "u2"}, nopSink{})
	req.NoError(registry.Join("c1", "r1"))

	req.Equal(2, registry.ConnectionCount())
	req.Equal(1, registry.RoomCount())

	registry.Leave("c1", "r1")
	req.Equal(0, registry.RoomCount())
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		connID := domain.ConnectionID(string(rune('a' + i%26)))
		registry.Register(connID, domain.Identity{UserID: "u"}, nopSink{})
		wg.Add(1)
		go func(id domain.ConnectionID) {
			defer wg.Done()
			_ = registry.Join(id, "r1")
			_ = registry.SinksForRoom("r1")
			registry.Leave(id, "r1")
		}(connID)
	}
	wg.Wait()
	req.Empty(registry.SinksForRoom("r1"))
}
