package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/realtime"
	"budgetapp/chatsync/internal/service"
	"budgetapp/chatsync/pkg/response"
)

type ChatHandler struct {
	chatService service.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, logger: logger}
}

type SendMessageRequest struct {
	SenderID uuid.UUID `json:"sender_id" binding:"required"`
	Content  string    `json:"content" binding:"required"`
}

// History returns the newest messages of a room, oldest first.
func (h *ChatHandler) History(c *gin.Context) {
	roomID, err := uuidParam(c, "id")
	if err != nil {
		return
	}
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		return
	}

	msgs, err := h.chatService.History(c.Request.Context(), roomID, limit)
	if err != nil {
		writeServiceError(c, h.logger, err, "load history")
		return
	}
	response.Success(c, msgs)
}

func (h *ChatHandler) Send(c *gin.Context) {
	roomID, err := uuidParam(c, "id")
	if err != nil {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), roomID, req.SenderID, req.Content)
	if err != nil {
		writeServiceError(c, h.logger, err, "send message")
		return
	}
	response.Created(c, msg)
}

type streamPayload struct {
	ID      string         `json:"id,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Stream relays live room events as server-sent events until the client
// goes away.
func (h *ChatHandler) Stream(c *gin.Context) {
	roomID, err := uuidParam(c, "id")
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	events, err := h.chatService.Live(ctx, roomID)
	if err != nil {
		writeServiceError(c, h.logger, err, "open live stream")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	defer h.logger.Debug("live stream closed", zap.Stringer("room", roomID))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Kind.String(), toStreamPayload(ev))
			c.Writer.Flush()
		}
	}
}

func toStreamPayload(ev realtime.Event[model.Message]) streamPayload {
	switch ev.Kind {
	case realtime.EventCreated, realtime.EventUpdated:
		msg := ev.Entity
		return streamPayload{ID: ev.ID, Message: &msg}
	case realtime.EventDeleted:
		return streamPayload{ID: ev.ID}
	case realtime.EventError:
		return streamPayload{Error: ev.Err.Error()}
	default:
		return streamPayload{}
	}
}
