package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat-service/internal/mocks"
	"roomchat-service/internal/telemetry"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.roomchat", "roomchat-service", "test")

	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.roomchat", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(telemetry.AuditEnvelope)
		}).Return(nil).Once()

	userID := int64(42)
	emitter.Emit(context.Background(), "INFO", "Room created", "req-1", &userID)

	publisher.AssertExpectations(t)
	require.Equal(t, "audit_log", captured.EventType)
	require.Equal(t, "roomchat-service", captured.Service)
	require.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	require.Equal(t, int64(42), *captured.UserID)
	require.Equal(t, "INFO", captured.Payload.Level)
	require.Equal(t, "Room created", captured.Payload.Text)
}

func TestEmitWithoutPublisherIsNoop(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit.roomchat", "roomchat-service", "test")
	emitter.Emit(context.Background(), "INFO", "ignored", "req-1", nil)
}
