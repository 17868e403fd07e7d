//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Panic recovery and restarts belong to the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision purposes, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events on behalf of one consumer: a live connection,
// the search index, or any other side-effect target.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// RoomSink pairs a live connection with its delivery sink so the fanout
// can skip a presence event's originator without extra lookups.
type RoomSink struct {
	Connection domain.ConnectionID
	UserID     string
	Sink       EventSink
}

type IRegistry interface {
	SinksForRoom(roomID domain.RoomID) []RoomSink
	IsMember(connID domain.ConnectionID, roomID domain.RoomID) bool
}

// MessageStore persists messages and serves cursor-paginated history.
// Page returns up to limit messages strictly older than the cursor,
// newest first, the hasMore flag and the cursor for the next page.
type MessageStore interface {
	Store(message domain.Message) error
	Page(roomID domain.RoomID, before *string, limit int) ([]domain.Message, bool, *string, error)
}

// RoomDirectory is the read-only view over rooms created by the
// administrative flow.
type RoomDirectory interface {
	Get(roomID domain.RoomID) (domain.Room, error)
}

// TokenVerifier resolves a bearer credential into a verified identity.
// Token issuance lives outside this core.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}
