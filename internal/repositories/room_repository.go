package repositories

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"roomchat-service/internal/models"
)

var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrAlreadyParticipant      = errors.New("user is already a participant")
	ErrParticipantsNotFound    = errors.New("one or more participants not found")
	ErrDuplicateParticipantSet = errors.New("a room with this participant set already exists")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, participantIDs []int) (models.Room, bool, error)
	FindByParticipantSet(ctx context.Context, participantIDs []int) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID int) ([]models.Room, error)
	IsParticipant(ctx context.Context, roomID int, userID int) (bool, error)
	AddParticipant(ctx context.Context, roomID int, userID int) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID int) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// participantSetDigest canonicalizes a participant set so that rooms with the
// same members map to the same digest regardless of order or duplicates.
func participantSetDigest(ids []int) string {
	unique := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	sorted := make([]int, 0, len(unique))
	for id := range unique {
		sorted = append(sorted, id)
	}
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.Itoa(id))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// CreateRoom creates a room for the participant set, or returns the existing
// room when one with exactly the same members already exists. The second
// return value reports whether a new room was created.
func (r *RoomRepo) CreateRoom(ctx context.Context, participantIDs []int) (models.Room, bool, error) {
	digest := participantSetDigest(participantIDs)

	room, err := r.findByDigest(ctx, digest)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return models.Room{}, false, err
	}

	users, err := r.resolveUsers(ctx, participantIDs)
	if err != nil {
		return models.Room{}, false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms (participant_digest) VALUES ($1) ON CONFLICT (participant_digest) DO NOTHING RETURNING id, created_at`, digest).
		Scan(&room.ID, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// lost a concurrent create for the same set, reuse that room
			tx.Rollback()
			existing, findErr := r.findByDigest(ctx, digest)
			err = nil
			return existing, false, findErr
		}
		return models.Room{}, false, err
	}

	for _, u := range users {
		if _, err = tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id, username) VALUES ($1, $2, $3)`, room.ID, u.ID, u.Username); err != nil {
			return models.Room{}, false, err
		}
		room.Participants = append(room.Participants, models.Participant{UserID: u.ID, Username: u.Username})
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, false, err
	}
	return room, true, nil
}

// FindByParticipantSet returns the room whose member set equals the given set.
func (r *RoomRepo) FindByParticipantSet(ctx context.Context, participantIDs []int) (models.Room, error) {
	return r.findByDigest(ctx, participantSetDigest(participantIDs))
}

func (r *RoomRepo) findByDigest(ctx context.Context, digest string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, created_at FROM rooms WHERE participant_digest=$1`, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}
	room.Participants, err = r.loadParticipants(ctx, room.ID)
	return room, err
}

// GetRoom fetches a room with its participants.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}
	room.Participants, err = r.loadParticipants(ctx, room.ID)
	return room, err
}

// ListRoomsForUser returns the rooms the user participates in, newest first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.created_at FROM rooms r
        INNER JOIN room_participants rp ON rp.room_id = r.id
        WHERE rp.user_id=$1 ORDER BY r.created_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Participants, err = r.loadParticipants(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

// IsParticipant checks whether the user belongs to the room. Every room
// operation authorizes through this predicate.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// AddParticipant adds a user to the room and recomputes the room digest so
// exact-set lookups keep matching the current member set.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID int, userID int) (models.Room, error) {
	user, err := r.resolveUser(ctx, userID)
	if err != nil {
		return models.Room{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx, `SELECT id, created_at FROM rooms WHERE id=$1 FOR UPDATE`, roomID).
		Scan(&room.ID, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrRoomNotFound
		}
		return models.Room{}, err
	}

	var member bool
	if err = tx.GetContext(ctx, &member, `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID); err != nil {
		return models.Room{}, err
	}
	if member {
		err = ErrAlreadyParticipant
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id, username) VALUES ($1, $2, $3)`, roomID, userID, user.Username); err != nil {
		return models.Room{}, err
	}

	var memberIDs []int
	if err = tx.SelectContext(ctx, &memberIDs, `SELECT user_id FROM room_participants WHERE room_id=$1`, roomID); err != nil {
		return models.Room{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE rooms SET participant_digest=$1 WHERE id=$2`, participantSetDigest(memberIDs), roomID); err != nil {
		// growing the set can collide with a room that already has it
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = ErrDuplicateParticipantSet
		}
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return r.GetRoom(ctx, roomID)
}

// DeleteRoom removes the room and, via cascade, its participants and messages.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepo) loadParticipants(ctx context.Context, roomID int) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants, `SELECT user_id, username FROM room_participants WHERE room_id=$1 ORDER BY joined_at ASC, user_id ASC`, roomID)
	return participants, err
}

func (r *RoomRepo) resolveUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, password_hash, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// resolveUsers loads every participant and fails when any id is unknown.
func (r *RoomRepo) resolveUsers(ctx context.Context, ids []int) ([]models.User, error) {
	unique := make(map[int]struct{}, len(ids))
	ordered := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; !ok {
			unique[id] = struct{}{}
			ordered = append(ordered, id)
		}
	}
	sort.Ints(ordered)

	query, args, err := sqlx.In(`SELECT id, username, password_hash, created_at FROM users WHERE id IN (?) ORDER BY id ASC`, ordered)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	if len(users) != len(ordered) {
		return nil, ErrParticipantsNotFound
	}
	return users, nil
}
