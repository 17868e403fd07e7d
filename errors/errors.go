package errors

import "fmt"

var (
	// ErrUnauthorized refuses a handshake with a missing, malformed or expired credential.
	ErrUnauthorized = fmt.Errorf("unauthorized")
	// ErrRoomNotFound rejects an operation targeting a room id absent from the directory.
	ErrRoomNotFound = fmt.Errorf("room not found")
	// ErrNotAMember rejects send/typing issued before join-room.
	ErrNotAMember = fmt.Errorf("not a member of the room")
	// ErrValidation rejects a malformed message payload.
	ErrValidation = fmt.Errorf("invalid message payload")
	// ErrConnectionClosed signals an operation raced with the connection teardown.
	ErrConnectionClosed = fmt.Errorf("connection no longer registered")
	// ErrSlowConsumer is returned by a connection sink whose buffer is full.
	ErrSlowConsumer = fmt.Errorf("connection send buffer full")
	// ErrWorkerPanic replaces a recovered panic inside a supervised worker.
	ErrWorkerPanic = fmt.Errorf("worker panic")
)
