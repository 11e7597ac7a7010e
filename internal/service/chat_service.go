package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/realtime"
	"budgetapp/chatsync/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type ChatService interface {
	History(ctx context.Context, roomID uuid.UUID, limit int) ([]model.Message, error)
	SendMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*model.Message, error)
	// Live streams the room's message changes until ctx is done.
	Live(ctx context.Context, roomID uuid.UUID) (<-chan realtime.Event[model.Message], error)
}

// LiveConfig wires live updates. A nil Transport disables them.
type LiveConfig struct {
	Transport realtime.Transport
	Schema    string
	Options   realtime.Options
}

type chatService struct {
	messages   repository.MessageRepository
	cache      *cache.Manager
	breaker    *gobreaker.CircuitBreaker
	historyTTL time.Duration
	live       LiveConfig
	logger     *zap.Logger
}

func NewChatService(
	messages repository.MessageRepository,
	c *cache.Manager,
	cb *gobreaker.CircuitBreaker,
	historyTTL time.Duration,
	live LiveConfig,
	logger *zap.Logger,
) ChatService {
	if historyTTL <= 0 {
		historyTTL = c.DefaultTTL()
	}
	return &chatService{
		messages:   messages,
		cache:      c,
		breaker:    cb,
		historyTTL: historyTTL,
		live:       live,
		logger:     logger.Named("chat"),
	}
}

var messageListCodec cache.JSONCodec[[]model.Message]

func (s *chatService) History(ctx context.Context, roomID uuid.UUID, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return cache.GetOrPut(ctx, s.cache, cache.RoomMessagesKey(roomID, limit), s.historyTTL, messageListCodec,
		func(ctx context.Context) ([]model.Message, error) {
			return remote(s.breaker, func() ([]model.Message, error) {
				return s.messages.ListByRoom(ctx, roomID, limit)
			})
		})
}

func (s *chatService) SendMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" || roomID == uuid.Nil || senderID == uuid.Nil {
		return nil, fmt.Errorf("%w: room, sender and content are required", ErrInvalidInput)
	}

	msg := &model.Message{RoomID: roomID, SenderID: senderID, Content: content}
	if err := remoteExec(s.breaker, func() error { return s.messages.Create(ctx, msg) }); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	s.cache.RemovePrefix(ctx, cache.RoomMessagesPrefix(roomID))
	return msg, nil
}

// Live opens a fresh subscription with its own dedupe window, so concurrent
// viewers of one room never suppress each other's events.
func (s *chatService) Live(ctx context.Context, roomID uuid.UUID) (<-chan realtime.Event[model.Message], error) {
	if s.live.Transport == nil {
		return nil, ErrLiveUnavailable
	}

	scope := MessageScope(roomID, s.live.Schema)
	scope.Name += ":" + uuid.NewString()

	opts := s.live.Options
	opts.Logger = s.logger
	rs := realtime.NewSync[model.Message](s.live.Transport, opts)
	events, err := rs.Subscribe(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLiveUnavailable, err)
	}

	out := make(chan realtime.Event[model.Message], cap(events))
	go func() {
		defer close(out)
		for ev := range events {
			switch ev.Kind {
			case realtime.EventCreated, realtime.EventUpdated, realtime.EventDeleted:
				s.cache.RemovePrefix(ctx, cache.RoomMessagesPrefix(roomID))
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				// drain so the subscription can shut down
				for range events {
				}
				return
			}
		}
	}()
	return out, nil
}

// MessageScope is the realtime topic for one chat room.
func MessageScope(roomID uuid.UUID, schema string) realtime.Scope[model.Message] {
	if schema == "" {
		schema = "public"
	}
	return realtime.Scope[model.Message]{
		Name: "room:" + roomID.String(),
		Filter: realtime.ChangeFilter{
			Schema: schema,
			Table:  model.Message{}.TableName(),
			Filter: "room_id=eq." + roomID.String(),
		},
		Decode: realtime.DecodeRecord[model.Message],
		// delete payloads may carry only the primary key
		InScope: func(m model.Message) bool {
			return m.RoomID == roomID || m.RoomID == uuid.Nil
		},
		Identity: func(m model.Message) string {
			return m.ID.String() + "@" + m.UpdatedAt.UTC().Format(time.RFC3339Nano)
		},
		EntityID: func(m model.Message) string {
			return m.ID.String()
		},
	}
}
