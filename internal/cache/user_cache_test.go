package cache

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"roomchat-service/internal/models"
)

func TestCachedUserNeverCarriesPasswordHash(t *testing.T) {
	user := models.User{ID: 7, Username: "alice", PasswordHash: "$2a$10$secret", CreatedAt: time.Now()}

	payload, err := json.Marshal(toCachedUser(user))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(payload), "secret") || strings.Contains(string(payload), "password") {
		t.Fatalf("cached payload must not contain credential material: %s", payload)
	}

	var entry cachedUser
	if err := json.Unmarshal(payload, &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := entry.user()
	if got.ID != user.ID || got.Username != user.Username {
		t.Fatalf("round-trip lost identity fields: %+v", got)
	}
	if got.PasswordHash != "" {
		t.Fatalf("cache hits must return an empty password hash")
	}
}
