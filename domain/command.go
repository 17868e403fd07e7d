package domain

// Command is an inbound client intent, parsed from the wire by the
// transport layer. Each connection's commands are handled strictly in
// arrival order.
type Command interface {
	RoomID() RoomID
}

type JoinRoomCommand struct {
	Room       RoomID
	Connection ConnectionID
}

func (c JoinRoomCommand) RoomID() RoomID { return c.Room }

type LeaveRoomCommand struct {
	Room       RoomID
	Connection ConnectionID
}

func (c LeaveRoomCommand) RoomID() RoomID { return c.Room }

type SendMessageCommand struct {
	Room       RoomID
	Connection ConnectionID
	Sender     Identity
	Content    string
	Type       MessageType
	ImageURL   string
}

func (c SendMessageCommand) RoomID() RoomID { return c.Room }

type TypingStartCommand struct {
	Room       RoomID
	Connection ConnectionID
	Sender     Identity
}

func (c TypingStartCommand) RoomID() RoomID { return c.Room }

type TypingStopCommand struct {
	Room       RoomID
	Connection ConnectionID
	Sender     Identity
}

func (c TypingStopCommand) RoomID() RoomID { return c.Room }
