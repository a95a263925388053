package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-gateway/internal/events"
)

func TestSessionAuditWorker_LogsEveryLifecycleEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher(nil)
	StartSessionAuditWorker(dispatcher, zap.New(core))

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSessionEstablished, "42", "password", time.Now())))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSessionExpired, "", "", time.Now())))

	entries := logs.FilterMessage("session event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "audit", entries[0].LoggerName)
	assert.Equal(t, "session_established", entries[0].ContextMap()["type"])
	assert.Equal(t, "42", entries[0].ContextMap()["subject"])
	assert.Equal(t, "session_expired", entries[1].ContextMap()["type"])
}

func TestSessionAuditWorker_NilDispatcher(t *testing.T) {
	assert.NotPanics(t, func() { StartSessionAuditWorker(nil, zap.NewNop()) })
}
