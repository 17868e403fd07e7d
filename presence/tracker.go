// Package presence tracks ephemeral typing state per room. Entries are
// never persisted; an entry disappears on explicit stop, on idle expiry
// or on disconnect, and the three are equivalent and idempotent.
package presence

import (
	"sync"
	"time"

	"github.com/heaming/zipper-sub001/domain"
)

// TypingUser is one currently-typing member of a room.
type TypingUser struct {
	UserID   string
	Nickname string
}

// Expired is a typing entry evicted by the sweeper.
type Expired struct {
	Room   domain.RoomID
	UserID string
}

type entry struct {
	nickname string
	lastSeen time.Time
}

type roomState struct {
	mu    sync.Mutex
	users map[string]entry
}

// Tracker is a sweepable expiring map keyed by (room, user). Rooms are
// independent: refreshes in different rooms never contend.
type Tracker struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*roomState
	window time.Duration
	now    func() time.Time
}

func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		rooms:  make(map[domain.RoomID]*roomState),
		window: window,
		now:    time.Now,
	}
}

// MarkTyping refreshes the (room, user) entry. It reports whether the
// user transitioned from idle to typing, so callers broadcast the start
// event once instead of on every client heartbeat.
func (t *Tracker) MarkTyping(room domain.RoomID, userID, nickname string) bool {
	rs := t.roomFor(room)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	now := t.now()
	prev, existed := rs.users[userID]
	started := !existed || now.Sub(prev.lastSeen) > t.window
	rs.users[userID] = entry{nickname: nickname, lastSeen: now}
	return started
}

// MarkStopped removes the entry. It reports whether the user was still
// considered typing; stopping twice is a no-op.
func (t *Tracker) MarkStopped(room domain.RoomID, userID string) bool {
	t.mu.RLock()
	rs, ok := t.rooms[room]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	prev, existed := rs.users[userID]
	if !existed {
		return false
	}
	delete(rs.users, userID)
	return t.now().Sub(prev.lastSeen) <= t.window
}

// Typing returns the live typing set of a room, lazily skipping entries
// the sweeper has not evicted yet.
func (t *Tracker) Typing(room domain.RoomID) []TypingUser {
	t.mu.RLock()
	rs, ok := t.rooms[room]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	now := t.now()
	var typing []TypingUser
	for userID, e := range rs.users {
		if now.Sub(e.lastSeen) > t.window {
			continue
		}
		typing = append(typing, TypingUser{UserID: userID, Nickname: e.nickname})
	}
	return typing
}

// Sweep evicts every entry older than the idle window and returns them
// so the caller can broadcast the stopped events.
func (t *Tracker) Sweep(now time.Time) []Expired {
	t.mu.RLock()
	states := make(map[domain.RoomID]*roomState, len(t.rooms))
	for room, rs := range t.rooms {
		states[room] = rs
	}
	t.mu.RUnlock()

	var expired []Expired
	for room, rs := range states {
		rs.mu.Lock()
		for userID, e := range rs.users {
			if now.Sub(e.lastSeen) > t.window {
				delete(rs.users, userID)
				expired = append(expired, Expired{Room: room, UserID: userID})
			}
		}
		rs.mu.Unlock()
	}
	return expired
}

func (t *Tracker) roomFor(room domain.RoomID) *roomState {
	t.mu.RLock()
	rs, ok := t.rooms[room]
	t.mu.RUnlock()
	if ok {
		return rs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rs, ok = t.rooms[room]; ok {
		return rs
	}
	rs = &roomState{users: make(map[string]entry)}
	t.rooms[room] = rs
	return rs
}
