// Package runtime holds the in-memory state of the server: which
// connections are live, who they are, and which rooms they joined.
// Everything here dies with the process; only messages are durable.
package runtime

import (
	"fmt"
	"sync"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
)

type connState struct {
	mu       sync.Mutex
	identity domain.Identity
	sink     contract.EventSink
	joined   map[domain.RoomID]struct{}
}

type roomState struct {
	mu      sync.Mutex
	members map[domain.ConnectionID]*connState
}

// Registry tracks live connections and room membership. Lock order is
// registry, then room, then connection; never the other way around.
//
// Room states are kept once created. The set of rooms is the small,
// administratively managed directory, not user input.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*connState
	rooms map[domain.RoomID]*roomState
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ConnectionID]*connState),
		rooms: make(map[domain.RoomID]*roomState),
	}
}

// Register adds a freshly authenticated connection with no memberships.
func (r *Registry) Register(connID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &connState{
		identity: identity,
		sink:     sink,
		joined:   make(map[domain.RoomID]struct{}),
	}
}

// Unregister removes the connection from every room it joined and
// returns those rooms so the caller can clear presence state.
// Unregistering twice is a no-op.
func (r *Registry) Unregister(connID domain.ConnectionID) []domain.RoomID {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, connID)

	conn.mu.Lock()
	joined := make([]domain.RoomID, 0, len(conn.joined))
	for roomID := range conn.joined {
		joined = append(joined, roomID)
	}
	conn.joined = make(map[domain.RoomID]struct{})
	conn.mu.Unlock()

	states := make([]*roomState, 0, len(joined))
	for _, roomID := range joined {
		if rs, ok := r.rooms[roomID]; ok {
			states = append(states, rs)
		}
	}
	r.mu.Unlock()

	for _, rs := range states {
		rs.mu.Lock()
		delete(rs.members, connID)
		rs.mu.Unlock()
	}
	return joined
}

// Join subscribes the connection to a room. Joining twice is a no-op.
func (r *Registry) Join(connID domain.ConnectionID, roomID domain.RoomID) error {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrConnectionClosed, connID)
	}

	rs := r.roomFor(roomID)
	rs.mu.Lock()
	rs.members[connID] = conn
	rs.mu.Unlock()

	conn.mu.Lock()
	conn.joined[roomID] = struct{}{}
	conn.mu.Unlock()
	return nil
}

// Leave unsubscribes the connection. Leaving a room it never joined is
// a no-op.
func (r *Registry) Leave(connID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.RLock()
	conn, connOK := r.conns[connID]
	rs, roomOK := r.rooms[roomID]
	r.mu.RUnlock()

	if roomOK {
		rs.mu.Lock()
		delete(rs.members, connID)
		rs.mu.Unlock()
	}
	if connOK {
		conn.mu.Lock()
		delete(conn.joined, roomID)
		conn.mu.Unlock()
	}
}

func (r *Registry) IsMember(connID domain.ConnectionID, roomID domain.RoomID) bool {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	_, member := rs.members[connID]
	return member
}

// SinksForRoom snapshots the current members as delivery targets. The
// fanout iterates the snapshot without holding registry locks.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.RoomSink {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	sinks := make([]contract.RoomSink, 0, len(rs.members))
	for connID, conn := range rs.members {
		sinks = append(sinks, contract.RoomSink{
			Connection: connID,
			UserID:     conn.identity.UserID,
			Sink:       conn.sink,
		})
	}
	return sinks
}

// Identity returns the verified identity behind a connection.
func (r *Registry) Identity(connID domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	if !ok {
		return domain.Identity{}, false
	}
	return conn.identity, true
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount counts rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	states := make([]*roomState, 0, len(r.rooms))
	for _, rs := range r.rooms {
		states = append(states, rs)
	}
	r.mu.RUnlock()

	active := 0
	for _, rs := range states {
		rs.mu.Lock()
		if len(rs.members) > 0 {
			active++
		}
		rs.mu.Unlock()
	}
	return active
}

func (r *Registry) roomFor(roomID domain.RoomID) *roomState {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok = r.rooms[roomID]; ok {
		return rs
	}
	rs = &roomState{members: make(map[domain.ConnectionID]*connState)}
	r.rooms[roomID] = rs
	return rs
}
