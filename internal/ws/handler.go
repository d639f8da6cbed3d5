package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"roomchat-service/internal/observability"
	"roomchat-service/internal/session"
)

// Handler upgrades websocket connections and pumps their events into the
// coordinator. Connections arrive unauthenticated; identity is established
// by the first successful authenticate event.
type Handler struct {
	hub         *Hub
	registry    *session.Registry
	coordinator *Coordinator
	kind        string
}

// NewHandler constructs a Handler. kind labels metrics and lifecycle events.
func NewHandler(hub *Hub, registry *session.Registry, coordinator *Coordinator, kind string) *Handler {
	return &Handler{hub: hub, registry: registry, coordinator: coordinator, kind: kind}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its read loop.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("roomchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		SessionID:   newSessionID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Register(info.SessionID, conn)

	observability.IncWSActive(h.kind)
	observability.IncWSEvent(h.kind, "ws_connect")
	h.publishLifecycle(info, "ws_connect", "")

	go func() {
		var closeReason string
		defer func() {
			h.coordinator.Disconnect(info.SessionID)
			h.hub.Unregister(info.SessionID)
			observability.DecWSActive(h.kind)
			observability.IncWSEvent(h.kind, "ws_disconnect")
			h.publishLifecycle(info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(h.kind, "ws_error")
					h.publishLifecycle(info, "ws_error", closeReason)
				}
				return
			}
			h.coordinator.HandleEvent(info.SessionID, payload)
		}
	}()
}

func (h *Handler) publishLifecycle(info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        h.kind,
			"event":       event,
			"session_id":  info.SessionID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
	}
	if identity, ok := h.registry.IdentityOf(info.SessionID); ok {
		payload["identity"] = map[string]interface{}{
			"user_id":   identity.UserID,
			"username":  identity.Username,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		}
	} else {
		payload["identity"] = map[string]interface{}{
			"device_id": info.DeviceID,
			"ip":        info.IP,
		}
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		SessionID: info.SessionID,
		Payload:   payload,
	}, headers)
}
