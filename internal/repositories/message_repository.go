package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"roomchat-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyContent    = errors.New("message content is empty")
)

// MessageRepository defines the append-log of room messages. Membership is
// not checked here; callers authorize through RoomRepository.IsParticipant.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int, senderID int, content string) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error)
	ListUserMessages(ctx context.Context, userID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message to the room log.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int, senderID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id, room_id, sender_id, content, created_at`, roomID, senderID, content).
		Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// ListRoomMessages returns room messages in append order: ascending creation
// time with the serial id breaking ties.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, sender_id, content, created_at FROM messages WHERE room_id=$1 ORDER BY created_at ASC, id ASC`, roomID)
	return msgs, err
}

// ListUserMessages returns every message in rooms the user participates in.
func (r *MessageRepo) ListUserMessages(ctx context.Context, userID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT m.id, m.room_id, m.sender_id, m.content, m.created_at FROM messages m
        INNER JOIN room_participants rp ON rp.room_id = m.room_id
        WHERE rp.user_id=$1 ORDER BY m.created_at ASC, m.id ASC`, userID)
	return msgs, err
}
