package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"roomchat-service/internal/models"
	"roomchat-service/internal/repositories"
)

const (
	userKeyPrefix  = "user:id:"
	defaultUserTTL = 1 * time.Hour
)

// CachedUserRepo is a read-through Redis cache in front of a UserRepository.
// Writes go straight to the source of truth and prime the cache.
type CachedUserRepo struct {
	source repositories.UserRepository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedUserRepo constructs a CachedUserRepo.
func NewCachedUserRepo(source repositories.UserRepository, client *redis.Client, ttl time.Duration) *CachedUserRepo {
	if ttl <= 0 {
		ttl = defaultUserTTL
	}
	return &CachedUserRepo{source: source, client: client, ttl: ttl}
}

var _ repositories.UserRepository = (*CachedUserRepo)(nil)

// cachedUser is the projection stored in Redis. The password hash is never
// cached; any caller that needs it must read the source of truth.
type cachedUser struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toCachedUser(u models.User) cachedUser {
	return cachedUser{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func (c cachedUser) user() models.User {
	return models.User{ID: c.ID, Username: c.Username, CreatedAt: c.CreatedAt}
}

func (r *CachedUserRepo) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	user, err := r.source.CreateUser(ctx, username, passwordHash)
	if err != nil {
		return models.User{}, err
	}
	r.prime(ctx, user)
	return user, nil
}

// GetUser reads through the cache. Cache hits return a user without a
// password hash by design; see cachedUser.
func (r *CachedUserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	key := fmt.Sprintf("%s%d", userKeyPrefix, userID)
	cached, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedUser
		if err := json.Unmarshal(cached, &entry); err == nil {
			return entry.user(), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("user cache read failed: %v", err)
	}

	user, err := r.source.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	r.prime(ctx, user)
	return user, nil
}

// GetUserByUsername always hits the source: login needs the current hash.
func (r *CachedUserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.source.GetUserByUsername(ctx, username)
}

func (r *CachedUserRepo) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	return r.source.BulkUsers(ctx, ids)
}

func (r *CachedUserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.source.ListUsers(ctx)
}

func (r *CachedUserRepo) prime(ctx context.Context, user models.User) {
	payload, err := json.Marshal(toCachedUser(user))
	if err != nil {
		return
	}
	key := fmt.Sprintf("%s%d", userKeyPrefix, user.ID)
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		log.Printf("user cache write failed: %v", err)
	}
}
