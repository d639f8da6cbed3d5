package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

// MessageHandler manages the HTTP message endpoints. Sending through HTTP
// takes the same path as the socket: membership check, append, fan-out.
type MessageHandler struct {
	rooms       repositories.RoomRepository
	messages    repositories.MessageRepository
	users       repositories.UserRepository
	coordinator *ws.Coordinator
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository,
	users repositories.UserRepository, coordinator *ws.Coordinator, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{rooms: rooms, messages: messages, users: users, coordinator: coordinator, audit: audit}
}

// SendMessage handles POST /api/messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		RoomID  int    `json:"room_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.rooms.GetRoom(c.Request.Context(), req.RoomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	identity := models.Identity{UserID: c.GetInt("userID"), Username: c.GetString("username")}
	view, err := h.coordinator.SendToRoom(c.Request.Context(), req.RoomID, identity, req.Content, "")
	if err != nil {
		switch {
		case errors.Is(err, ws.ErrNotParticipant):
			h.emitAudit(c, "ERROR", "not allowed")
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this room"})
		case errors.Is(err, repositories.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message content is empty"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// ListRoomMessages handles GET /api/messages/rooms/:room_id.
func (h *MessageHandler) ListRoomMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	member, err := h.rooms.IsParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this room"})
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	views, err := h.withSenderNames(c, msgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// ListAllMessages handles GET /api/messages/all: every message across the
// caller's rooms, ascending by time.
func (h *MessageHandler) ListAllMessages(c *gin.Context) {
	userID := c.GetInt("userID")
	msgs, err := h.messages.ListUserMessages(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	views, err := h.withSenderNames(c, msgs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

func (h *MessageHandler) withSenderNames(c *gin.Context, msgs []models.Message) ([]models.MessageView, error) {
	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	usernameByID := map[int]string{}
	if len(senderIDs) > 0 {
		users, err := h.users.BulkUsers(c.Request.Context(), senderIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			usernameByID[u.ID] = u.Username
		}
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{Message: m, SenderUsername: usernameByID[m.SenderID]})
	}
	return views, nil
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
