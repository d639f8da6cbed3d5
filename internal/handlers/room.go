package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roomchat-service/internal/repositories"
	"roomchat-service/internal/telemetry"
)

// RoomHandler manages room endpoints.
type RoomHandler struct {
	rooms repositories.RoomRepository
	audit *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{rooms: rooms, audit: audit}
}

// CreateRoom handles POST /api/rooms. The caller is always part of the set.
// Responds 200 with the existing room when one with exactly the same
// participant set exists, 201 otherwise.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		ParticipantIDs []int `json:"participant_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, created, err := h.rooms.CreateRoom(c.Request.Context(), append([]int{userID}, req.ParticipantIDs...))
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantsNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "one or more participants not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{"room": room})
		return
	}
	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// ListRooms returns the caller's rooms, newest first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt("userID")
	rooms, err := h.rooms.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom returns one room when the caller participates in it.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}

	if !room.HasParticipant(c.GetInt("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// AddParticipant handles POST /api/rooms/:room_id/participants. Only current
// participants may add others.
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var req struct {
		ParticipantID int `json:"participant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.rooms.IsParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this room"})
		return
	}

	room, err := h.rooms.AddParticipant(c.Request.Context(), roomID, req.ParticipantID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyParticipant):
			c.JSON(http.StatusBadRequest, gin.H{"error": "user is already a participant"})
		case errors.Is(err, repositories.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, repositories.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, repositories.ErrDuplicateParticipantSet):
			c.JSON(http.StatusConflict, gin.H{"error": "a room with this participant set already exists"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add participant"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Participant added")
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// DeleteRoom handles DELETE /api/rooms/:room_id. Requires the caller to be a
// current participant.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	if !room.HasParticipant(userID) {
		h.emitAudit(c, "ERROR", "not allowed to delete room")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant in this room"})
		return
	}

	if err := h.rooms.DeleteRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete room"})
		return
	}

	h.emitAudit(c, "INFO", "Room deleted")
	c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseRoomID(c *gin.Context) (int, bool) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}
