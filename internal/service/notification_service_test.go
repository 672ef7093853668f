package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/events"
)

type webhookRecorder struct {
	mu      sync.Mutex
	headers []string
	bodies  []map[string]any
	status  int
}

func (w *webhookRecorder) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	w.mu.Lock()
	w.headers = append(w.headers, r.Header.Get(WebhookEventHeader))
	w.bodies = append(w.bodies, body)
	status := w.status
	w.mu.Unlock()
	if status == 0 {
		status = http.StatusAccepted
	}
	rw.WriteHeader(status)
}

func TestWebhookReceivesEveryEvent(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID:        "ev-1",
		Type:      events.EventStatusChanged,
		Kind:      domain.KindTicket,
		EntityID:  "t1",
		DisplayID: "TCK-000001",
		Payload:   events.StatusChangedPayload{OldStatus: domain.StatusNew, NewStatus: domain.StatusClosed},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "ev-2", Type: events.EventEntityDeleted, EntityID: "t1"}))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{string(events.EventStatusChanged), string(events.EventEntityDeleted)}, rec.headers)
	require.Len(t, rec.bodies, 2)
	assert.Equal(t, "TCK-000001", rec.bodies[0]["display_id"])
	payload, ok := rec.bodies[0]["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Closed", payload["new_status"])
}

func TestWebhookFailureDoesNotFailPublish(t *testing.T) {
	rec := &webhookRecorder{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: srv.URL}).RegisterHandlers()

	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventReplyAdded, Payload: events.ReplyAddedPayload{AddedBy: "Support"}}))
	rec.mu.Lock()
	assert.Len(t, rec.headers, 1)
	rec.mu.Unlock()
}

func TestNoWebhookWithoutURL(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{EmailFrom: "support@example.com"}).RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventEntityCreated, Payload: events.EntityCreatedPayload{Title: "x"}}))

	rec.mu.Lock()
	assert.Empty(t, rec.headers)
	rec.mu.Unlock()
}
