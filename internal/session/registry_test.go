package session

import (
	"testing"

	"roomchat-service/internal/models"
)

func TestBindAndIdentityOf(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.IdentityOf("s1"); ok {
		t.Fatalf("expected no identity before bind")
	}

	r.Bind("s1", models.Identity{UserID: 1, Username: "alice"})
	identity, ok := r.IdentityOf("s1")
	if !ok || identity.UserID != 1 || identity.Username != "alice" {
		t.Fatalf("unexpected identity after bind: %+v ok=%v", identity, ok)
	}

	// re-bind overwrites
	r.Bind("s1", models.Identity{UserID: 2, Username: "bob"})
	identity, _ = r.IdentityOf("s1")
	if identity.UserID != 2 {
		t.Fatalf("expected re-bind to overwrite, got %+v", identity)
	}
}

func TestRebindSameUserKeepsJoinedRooms(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", models.Identity{UserID: 1, Username: "alice"})
	r.MarkJoined("s1", 7)

	// token refresh: same user, new credential
	r.Bind("s1", models.Identity{UserID: 1, Username: "alice"})

	if !r.HasJoined("s1", 7) {
		t.Fatalf("re-bind as the same user must keep joined rooms")
	}
	if len(r.SessionsJoinedTo(7)) != 1 {
		t.Fatalf("session must remain a fan-out target for room 7")
	}
}

func TestRebindDifferentUserDropsJoinedRooms(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", models.Identity{UserID: 1, Username: "alice"})
	r.MarkJoined("s1", 7)
	r.MarkJoined("s1", 9)

	// the old joins were authorized for alice, not for bob
	r.Bind("s1", models.Identity{UserID: 2, Username: "bob"})

	if r.HasJoined("s1", 7) || r.HasJoined("s1", 9) {
		t.Fatalf("re-bind as a different user must drop joined rooms")
	}
	if len(r.SessionsJoinedTo(7)) != 0 || len(r.SessionsJoinedTo(9)) != 0 {
		t.Fatalf("re-bound session must not remain a fan-out target")
	}
	if len(r.JoinedRooms("s1")) != 0 {
		t.Fatalf("joined-room set must be empty after identity change")
	}
}

func TestMarkJoinedRequiresBind(t *testing.T) {
	r := NewRegistry()

	r.MarkJoined("ghost", 7)
	if len(r.SessionsJoinedTo(7)) != 0 {
		t.Fatalf("unbound session must not join rooms")
	}
}

func TestSessionsJoinedTo(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", models.Identity{UserID: 1})
	r.Bind("s2", models.Identity{UserID: 2})
	r.Bind("s3", models.Identity{UserID: 1})

	r.MarkJoined("s1", 7)
	r.MarkJoined("s2", 7)
	r.MarkJoined("s3", 9)

	joined := r.SessionsJoinedTo(7)
	if len(joined) != 2 {
		t.Fatalf("expected 2 sessions joined to room 7, got %d", len(joined))
	}
	for _, id := range joined {
		if id == "s3" {
			t.Fatalf("session joined to another room must not appear")
		}
	}

	if !r.HasJoined("s1", 7) || r.HasJoined("s1", 9) {
		t.Fatalf("HasJoined mismatch")
	}
}

func TestUnbindRemovesFromAllRooms(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", models.Identity{UserID: 1})
	r.MarkJoined("s1", 7)
	r.MarkJoined("s1", 9)

	r.Unbind("s1")

	if _, ok := r.IdentityOf("s1"); ok {
		t.Fatalf("expected identity gone after unbind")
	}
	if len(r.SessionsJoinedTo(7)) != 0 || len(r.SessionsJoinedTo(9)) != 0 {
		t.Fatalf("unbound session must not be a fan-out target")
	}
	if len(r.Sessions()) != 0 {
		t.Fatalf("expected no sessions after unbind")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.Bind("s1", models.Identity{UserID: 1})
	r.MarkJoined("s1", 7)

	snapshot := r.SessionsJoinedTo(7)
	r.Unbind("s1")

	// the earlier snapshot is a copy, mutating the registry does not touch it
	if len(snapshot) != 1 {
		t.Fatalf("snapshot must be unaffected by later unbind")
	}
	if len(r.SessionsJoinedTo(7)) != 0 {
		t.Fatalf("new snapshot must reflect the unbind")
	}
}
