package ws

import (
	"testing"

	"roomchat-service/internal/models"
)

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	hub.Register("s1", nil)
	if hub.Len() != 1 {
		t.Fatalf("expected one registered client")
	}

	hub.Unregister("s1")
	if hub.Len() != 0 {
		t.Fatalf("expected client to be removed")
	}
}

func TestHubSendUnknownSessionIsNoop(t *testing.T) {
	hub := NewHub()

	if err := hub.Send("missing", models.ServerEvent{Type: models.EventError}); err != nil {
		t.Fatalf("sending to an unknown session must not error: %v", err)
	}
}
