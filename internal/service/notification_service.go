package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/events"
)

// WebhookEventHeader carries the event type on webhook deliveries.
const WebhookEventHeader = "X-Portal-Event"

// NotificationService reacts to portal events: it writes an audit log line for
// each one and, when configured, forwards every event to a webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	http       *resty.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetTimeout(5*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		cfg:        cfg,
		http:       httpClient,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEntityCreated, n.onEntityCreated)
	n.dispatcher.Subscribe(events.EventStatusChanged, n.onStatusChanged)
	n.dispatcher.Subscribe(events.EventReplyAdded, n.onReplyAdded)
	n.dispatcher.Subscribe(events.EventEntityDeleted, n.onEntityDeleted)
	if strings.TrimSpace(n.cfg.WebhookURL) != "" {
		n.dispatcher.SubscribeAll(n.forward)
	}
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("entity_id", event.EntityID),
		zap.String("display_id", event.DisplayID),
		zap.String("actor_id", event.Actor.UserID),
	}
}

func (n *NotificationService) onEntityCreated(ctx context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.EntityCreatedPayload); ok {
		fields = append(fields, zap.String("category", string(p.Category)), zap.String("outlet", p.OutletName))
	}
	n.logger.Info("entity created", fields...)
	n.emailSupport(ctx, event)
	return nil
}

func (n *NotificationService) onStatusChanged(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.StatusChangedPayload); ok {
		fields = append(fields, zap.String("from", string(p.OldStatus)), zap.String("to", string(p.NewStatus)))
	}
	n.logger.Info("status changed", fields...)
	return nil
}

func (n *NotificationService) onReplyAdded(ctx context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.ReplyAddedPayload); ok {
		fields = append(fields, zap.String("added_by", p.AddedBy), zap.String("note", p.NotePreview))
	}
	n.logger.Info("reply added", fields...)
	n.emailSupport(ctx, event)
	return nil
}

func (n *NotificationService) onEntityDeleted(_ context.Context, event events.Event) error {
	n.logger.Info("entity deleted", eventFields(event)...)
	return nil
}

// emailSupport records the mail that would go to the support inbox. There is
// no SMTP transport yet.
func (n *NotificationService) emailSupport(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email queued",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("event_type", string(event.Type)),
		zap.String("display_id", event.DisplayID))
}

// forward posts the event as JSON to the configured webhook.
func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader(WebhookEventHeader, string(event.Type)).
		SetBody(event).
		Post(strings.TrimSpace(n.cfg.WebhookURL))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.Type, err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook %s: status %d", event.Type, resp.StatusCode())
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_type", string(event.Type)),
		zap.Int("status", resp.StatusCode()))
	return nil
}
