package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heaming/zipper-sub001/domain"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/services"
	"github.com/heaming/zipper-sub001/sink"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10
	repliesBufSize = 16
)

// client owns one websocket connection: a read pump handling commands
// in arrival order, and a write pump multiplexing room events, direct
// replies and pings onto the socket. The write pump is the only writer.
type client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	connID   domain.ConnectionID
	identity domain.Identity
	service  services.IChatService
	sink     *sink.ConnSink
	replies  chan Envelope
	done     chan struct{}
}

func newClient(
	log *slog.Logger,
	conn *websocket.Conn,
	connID domain.ConnectionID,
	identity domain.Identity,
	service services.IChatService,
	connSink *sink.ConnSink,
) *client {
	return &client{
		log:      log.With("connection", connID, "user", identity.UserID),
		conn:     conn,
		connID:   connID,
		identity: identity,
		service:  service,
		sink:     connSink,
		replies:  make(chan Envelope, repliesBufSize),
		done:     make(chan struct{}),
	}
}

// readPump processes inbound frames until the socket dies. It returns
// after scheduling the teardown; the caller runs the cleanup.
func (c *client) readPump(ctx context.Context) {
	defer close(c.done)

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		c.handle(ctx, env)
	}
}

func (c *client) handle(ctx context.Context, env Envelope) {
	switch env.Event {
	case EventJoinRoom:
		c.handleRoomEvent(env, func(room domain.RoomID) error {
			return c.service.Join(domain.JoinRoomCommand{Room: room, Connection: c.connID})
		})
	case EventLeaveRoom:
		c.handleRoomEvent(env, func(room domain.RoomID) error {
			c.service.Leave(domain.LeaveRoomCommand{Room: room, Connection: c.connID})
			return nil
		})
	case EventSendMessage:
		c.handleSend(ctx, env)
	case EventTypingStart:
		c.handleRoomEvent(env, func(room domain.RoomID) error {
			return c.service.TypingStart(domain.TypingStartCommand{
				Room: room, Connection: c.connID, Sender: c.identity,
			})
		})
	case EventTypingStop:
		c.handleRoomEvent(env, func(room domain.RoomID) error {
			return c.service.TypingStop(domain.TypingStopCommand{
				Room: room, Connection: c.connID, Sender: c.identity,
			})
		})
	default:
		c.reply(errorEnvelope(fmt.Errorf("%w: unknown event %q", apperrors.ErrValidation, env.Event), ""))
	}
}

func (c *client) handleRoomEvent(env Envelope, fn func(room domain.RoomID) error) {
	var p roomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
		c.reply(errorEnvelope(fmt.Errorf("%w: missing roomId", apperrors.ErrValidation), ""))
		return
	}
	if err := fn(domain.RoomID(p.RoomID)); err != nil {
		c.reply(errorEnvelope(err, p.RoomID))
	}
}

func (c *client) handleSend(ctx context.Context, env Envelope) {
	var p sendMessagePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
		c.reply(errorEnvelope(fmt.Errorf("%w: malformed send-message payload", apperrors.ErrValidation), p.RoomID))
		return
	}

	// No direct acknowledgement: the sender receives the broadcast
	// new-message like every other member.
	_, err := c.service.Send(ctx, domain.SendMessageCommand{
		Room:       domain.RoomID(p.RoomID),
		Connection: c.connID,
		Sender:     c.identity,
		Content:    p.Content,
		Type:       domain.MessageType(p.Type),
		ImageURL:   p.ImageURL,
	})
	if err != nil {
		c.reply(errorEnvelope(err, p.RoomID))
	}
}

// reply queues a frame for this connection only. Dropping a reply on a
// saturated channel is preferable to blocking the read pump.
func (c *client) reply(env Envelope) {
	select {
	case c.replies <- env:
	default:
		c.log.Warn("Replies channel full, dropping frame", "event", env.Event)
	}
}

// writePump serializes all socket writes. It exits when the read pump
// closes done or a write fails, which in turn kills the read pump via
// the closed socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt := <-c.sink.Events:
			env, ok := toEnvelope(evt)
			if !ok {
				continue
			}
			if !c.write(env) {
				return
			}
		case env := <-c.replies:
			if !c.write(env) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(env Envelope) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(env); err != nil {
		c.log.Debug("Write failed, closing connection", "error", err)
		return false
	}
	return true
}
