package domain

// RoomID identifies a chat room.
type RoomID string

// RoomType distinguishes the building-wide room from topic rooms
// spawned around a community post.
type RoomType string

const (
	RoomTypeBuilding RoomType = "BUILDING"
	RoomTypeTopic    RoomType = "TOPIC"
)

// Room is long-lived and read-only to the messaging core. Rooms are
// created by the administrative flow (see cmd/roomctl), never here.
type Room struct {
	ID           RoomID
	Type         RoomType
	Name         string
	LinkedPostID *string
}
