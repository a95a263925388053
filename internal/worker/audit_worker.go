package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-gateway/internal/events"
)

// StartSessionAuditWorker writes one structured log line per session event.
func StartSessionAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	handler := func(_ context.Context, event events.Event) error {
		audit.Info("session event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("subject", event.Subject),
			zap.String("method", event.Method),
			zap.Time("at", event.Timestamp),
		)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventSessionEstablished,
		events.EventSessionRefreshed,
		events.EventSessionExpired,
		events.EventSessionEnded,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}
