package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/heaming/zipper-sub001/contract"
	"github.com/heaming/zipper-sub001/domain"
	"github.com/heaming/zipper-sub001/domain/event"
	apperrors "github.com/heaming/zipper-sub001/errors"
	"github.com/heaming/zipper-sub001/moderation"
)

// IngestorConfig bounds a single message and the handoff to fanout.
type IngestorConfig struct {
	MaxContentLength int
	EnqueueTimeout   time.Duration
}

// payload mirrors SendMessageCommand for struct-tag validation.
type payload struct {
	Content  string `validate:"max=4000"`
	Type     string `validate:"required,oneof=TEXT IMAGE"`
	ImageURL string `validate:"omitempty,url"`
}

// Ingestor is the single write path for messages. It validates,
// authorizes, censors, assigns id and timestamp, persists, and only
// then hands the event to fanout. A message that failed to persist is
// never broadcast.
//
// Timestamp assignment and persistence happen under a per-room mutex,
// so storage order, key order and fanout order agree within a room.
// Rooms do not contend with each other.
type Ingestor struct {
	log       *slog.Logger
	registry  contract.IRegistry
	rooms     contract.RoomDirectory
	store     contract.MessageStore
	moderator moderation.Moderator
	events    chan<- event.DomainEvent
	validate  *validator.Validate
	cfg       IngestorConfig

	mu        sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex
}

func NewIngestor(
	log *slog.Logger,
	registry contract.IRegistry,
	rooms contract.RoomDirectory,
	store contract.MessageStore,
	moderator moderation.Moderator,
	events chan<- event.DomainEvent,
	cfg IngestorConfig,
) *Ingestor {
	return &Ingestor{
		log:       log,
		registry:  registry,
		rooms:     rooms,
		store:     store,
		moderator: moderator,
		events:    events,
		validate:  validator.New(),
		cfg:       cfg,
		roomLocks: make(map[domain.RoomID]*sync.Mutex),
	}
}

// Ingest processes one send command and returns the persisted message.
func (i *Ingestor) Ingest(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := i.validatePayload(cmd); err != nil {
		return domain.Message{}, err
	}

	if _, err := i.rooms.Get(cmd.Room); err != nil {
		return domain.Message{}, err
	}
	if !i.registry.IsMember(cmd.Connection, cmd.Room) {
		return domain.Message{}, fmt.Errorf("%w: %s in room %s", apperrors.ErrNotAMember, cmd.Sender.UserID, cmd.Room)
	}

	content := cmd.Content
	language := ""
	if cmd.Type == domain.MessageTypeText {
		censored, words := i.moderator.Censor(content)
		if len(words) > 0 {
			i.log.Info("Censored message content",
				"room", cmd.Room, "sender", cmd.Sender.UserID, "words", words)
		}
		content = censored
		language = whatlanggo.Detect(content).Lang.Iso6391()
	}

	lock := i.roomLock(cmd.Room)
	lock.Lock()
	defer lock.Unlock()

	msg := domain.Message{
		ID:        uuid.New(),
		RoomID:    cmd.Room,
		SenderID:  cmd.Sender.UserID,
		Nickname:  cmd.Sender.Nickname,
		Content:   content,
		Type:      cmd.Type,
		ImageURL:  cmd.ImageURL,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}

	if err := i.store.Store(msg); err != nil {
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}

	i.enqueue(toPosted(msg))
	return msg, nil
}

// enqueue hands the persisted event to fanout. It deliberately ignores
// the request context: once stored, a message is broadcast even if the
// sender disconnected mid-request. The timeout only guards against a
// wedged fanout loop.
func (i *Ingestor) enqueue(evt event.DomainEvent) {
	select {
	case i.events <- evt:
	case <-time.After(i.cfg.EnqueueTimeout):
		i.log.Error("Fanout channel saturated, persisted message not broadcast",
			"room", evt.RoomID())
	}
}

func (i *Ingestor) validatePayload(cmd domain.SendMessageCommand) error {
	p := payload{Content: cmd.Content, Type: string(cmd.Type), ImageURL: cmd.ImageURL}
	if err := i.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	switch cmd.Type {
	case domain.MessageTypeText:
		if len(cmd.Content) == 0 {
			return fmt.Errorf("%w: empty text message", apperrors.ErrValidation)
		}
		if len(cmd.Content) > i.cfg.MaxContentLength {
			return fmt.Errorf("%w: content exceeds %d bytes", apperrors.ErrValidation, i.cfg.MaxContentLength)
		}
	case domain.MessageTypeImage:
		if cmd.ImageURL == "" {
			return fmt.Errorf("%w: image message without image reference", apperrors.ErrValidation)
		}
	}
	return nil
}

func (i *Ingestor) roomLock(room domain.RoomID) *sync.Mutex {
	i.mu.Lock()
	defer i.mu.Unlock()
	lock, ok := i.roomLocks[room]
	if !ok {
		lock = &sync.Mutex{}
		i.roomLocks[room] = lock
	}
	return lock
}

func toPosted(msg domain.Message) event.MessagePosted {
	return event.MessagePosted{
		ID:       msg.ID,
		Room:     msg.RoomID,
		SenderID: msg.SenderID,
		Nickname: msg.Nickname,
		Content:  msg.Content,
		Type:     msg.Type,
		ImageURL: msg.ImageURL,
		At:       msg.CreatedAt,
	}
}
