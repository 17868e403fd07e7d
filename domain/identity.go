package domain

// ConnectionID identifies one live socket connection. A user reconnecting
// gets a fresh id; no session continuity is kept across disconnects.
type ConnectionID string

// Identity is the verified owner of a connection, as resolved from the
// bearer credential at handshake time.
type Identity struct {
	UserID   string
	Nickname string
}
