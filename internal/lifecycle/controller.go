// Package lifecycle applies status changes, replies, and deletions to entities
// while keeping a feed's local cache consistent with the server.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/feed"
	"github.com/spec-kit/service-portal/internal/schedule"
	"github.com/spec-kit/service-portal/internal/status"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// MinReplyLength is the minimum number of characters in a trimmed reply note.
const MinReplyLength = 3

var (
	// ErrMutationInFlight is returned while another mutation on the same entity is outstanding.
	ErrMutationInFlight = apperrors.NewConflict("another change to this item is in progress", nil)
	// ErrNoPendingDelete is returned when confirming a deletion that was never requested or was cancelled.
	ErrNoPendingDelete = apperrors.NewValidationError("no pending deletion", nil)
)

// API is the remote collaborator that persists mutations.
type API interface {
	UpdateStatus(ctx context.Context, kind domain.Kind, id string, s domain.Status, visitAt *time.Time) (domain.Entity, error)
	AppendReply(ctx context.Context, kind domain.Kind, id string, reply domain.ReplySubmission) (domain.Entity, error)
	Delete(ctx context.Context, kind domain.Kind, id string) error
}

// Collection is the cache the controller keeps in sync. *feed.Feed implements it.
type Collection interface {
	Kind() domain.Kind
	Replace(entity domain.Entity) bool
	Remove(id string) bool
	Load(ctx context.Context, reset bool) error
}

// Observer receives the outcome of every mutation.
type Observer interface {
	ObserveMutation(operation, outcome string)
}

// ReplyDraft is the reply form as entered by the user.
type ReplyDraft struct {
	Note       string
	VisitDate  string
	VisitSlot  schedule.Slot
	Status     domain.Status
	Images     []domain.Upload
	PriceList  []domain.PriceItem
	TotalPrice *float64
}

// DeleteIntent is the first phase of a deletion; it must be confirmed.
type DeleteIntent struct {
	Token     string
	EntityID  string
	DisplayID string
	Kind      domain.Kind
}

// Controller mutates entities of one feed.
type Controller struct {
	api           API
	items         Collection
	logger        *zap.Logger
	observer      Observer
	now           func() time.Time
	location      *time.Location
	reloadOnReply bool

	mu      sync.Mutex
	busy    map[string]struct{}
	pending map[string]DeleteIntent
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports mutation outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock overrides the time source used for scheduling checks.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the zone visit dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithReloadOnReply controls whether a successful reply reloads the feed.
func WithReloadOnReply(enabled bool) Option {
	return func(c *Controller) { c.reloadOnReply = enabled }
}

// NewController builds a controller bound to items.
func NewController(api API, items Collection, opts ...Option) *Controller {
	c := &Controller{
		api:           api,
		items:         items,
		logger:        zap.NewNop(),
		now:           time.Now,
		location:      time.Local,
		reloadOnReply: true,
		busy:          make(map[string]struct{}),
		pending:       make(map[string]DeleteIntent),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateStatus sets a new status (and optionally a visit time) on entity.
// On success the cached copy is replaced in place so list order never changes.
func (c *Controller) UpdateStatus(ctx context.Context, entity domain.Entity, newStatus domain.Status, visitAt *time.Time) (domain.Entity, error) {
	newStatus = status.Normalize(newStatus)
	if !status.Valid(c.items.Kind(), newStatus) {
		c.observe("update_status", "invalid")
		return entity, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  newStatus,
			"allowed": status.Statuses(c.items.Kind()),
		})
	}
	if err := c.acquire(entity.ID); err != nil {
		c.observe("update_status", "busy")
		return entity, err
	}
	defer c.release(entity.ID)

	updated, err := c.api.UpdateStatus(ctx, c.items.Kind(), entity.ID, newStatus, visitAt)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.items.Remove(entity.ID)
		}
		c.observe("update_status", outcomeOf(err))
		c.logger.Warn("status update failed",
			zap.String("entity_id", entity.ID),
			zap.String("status", string(newStatus)),
			zap.Error(err))
		return entity, err
	}
	c.items.Replace(updated)
	c.observe("update_status", "ok")
	c.logger.Info("status updated",
		zap.String("entity_id", updated.ID),
		zap.String("display_id", updated.DisplayID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// SubmitReply validates and sends a reply. Nothing reaches the network when the
// note is too short or the visit date and slot do not resolve. On success the
// feed is reloaded rather than patched, since the server derives nested fields.
func (c *Controller) SubmitReply(ctx context.Context, entity domain.Entity, draft ReplyDraft) (domain.Entity, error) {
	note := strings.TrimSpace(draft.Note)
	if utf8.RuneCountInString(note) < MinReplyLength {
		c.observe("submit_reply", "invalid")
		return entity, apperrors.NewValidationError("message too short", map[string]any{"min": MinReplyLength})
	}
	if len(draft.Images) > domain.MaxEntryImages {
		c.observe("submit_reply", "invalid")
		return entity, apperrors.NewValidationError("too many images", map[string]any{"max": domain.MaxEntryImages})
	}
	target := status.Normalize(draft.Status)
	if target != "" && !status.Valid(c.items.Kind(), target) {
		c.observe("submit_reply", "invalid")
		return entity, apperrors.NewValidationError("invalid status", map[string]any{"status": target})
	}
	visitAt, err := schedule.Resolve(draft.VisitDate, draft.VisitSlot, c.now(), c.location)
	if err != nil {
		c.observe("submit_reply", "invalid")
		return entity, err
	}

	if err := c.acquire(entity.ID); err != nil {
		c.observe("submit_reply", "busy")
		return entity, err
	}
	defer c.release(entity.ID)

	updated, err := c.api.AppendReply(ctx, c.items.Kind(), entity.ID, domain.ReplySubmission{
		Note:       note,
		VisitAt:    visitAt,
		Status:     target,
		Images:     draft.Images,
		PriceList:  draft.PriceList,
		TotalPrice: draft.TotalPrice,
	})
	if err != nil {
		c.observe("submit_reply", outcomeOf(err))
		c.logger.Warn("reply failed", zap.String("entity_id", entity.ID), zap.Error(err))
		return entity, err
	}
	c.observe("submit_reply", "ok")
	c.logger.Info("reply submitted",
		zap.String("entity_id", entity.ID),
		zap.Time("visit_at", visitAt),
		zap.Int("timeline_length", len(updated.Timeline)))

	if c.reloadOnReply {
		if err := c.items.Load(ctx, true); err != nil && !errors.Is(err, feed.ErrLoadInFlight) {
			c.logger.Warn("reload after reply failed", zap.Error(err))
		}
	}
	return updated, nil
}

// RequestDelete opens a deletion confirmation for entity.
func (c *Controller) RequestDelete(entity domain.Entity) DeleteIntent {
	intent := DeleteIntent{
		Token:     uuid.NewString(),
		EntityID:  entity.ID,
		DisplayID: entity.DisplayID,
		Kind:      c.items.Kind(),
	}
	c.mu.Lock()
	c.pending[intent.Token] = intent
	c.mu.Unlock()
	return intent
}

// CancelDelete closes a pending confirmation without deleting.
func (c *Controller) CancelDelete(intent DeleteIntent) {
	c.mu.Lock()
	delete(c.pending, intent.Token)
	c.mu.Unlock()
}

// ConfirmDelete performs a requested deletion. When the server no longer has
// the entity the local copy is dropped as well and a not-found error is returned,
// which callers treat as a converged no-op.
func (c *Controller) ConfirmDelete(ctx context.Context, intent DeleteIntent) error {
	c.mu.Lock()
	_, ok := c.pending[intent.Token]
	c.mu.Unlock()
	if !ok {
		return ErrNoPendingDelete
	}
	// A busy entity keeps the confirmation open so the caller can retry.
	if err := c.acquire(intent.EntityID); err != nil {
		c.observe("delete", "busy")
		return err
	}
	defer c.release(intent.EntityID)
	defer c.CancelDelete(intent)

	err := c.api.Delete(ctx, c.items.Kind(), intent.EntityID)
	switch {
	case err == nil:
		c.items.Remove(intent.EntityID)
		c.observe("delete", "ok")
		c.logger.Info("entity deleted", zap.String("entity_id", intent.EntityID), zap.String("display_id", intent.DisplayID))
		return nil
	case apperrors.IsNotFound(err):
		c.items.Remove(intent.EntityID)
		c.observe("delete", "not_found")
		return err
	default:
		c.observe("delete", outcomeOf(err))
		c.logger.Warn("delete failed", zap.String("entity_id", intent.EntityID), zap.Error(err))
		return err
	}
}

// ModalOpen reports whether any deletion confirmation is pending.
func (c *Controller) ModalOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// Busy reports whether a mutation on id is in flight.
func (c *Controller) Busy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[id]
	return ok
}

func (c *Controller) acquire(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.busy[id]; ok {
		return ErrMutationInFlight
	}
	c.busy[id] = struct{}{}
	return nil
}

func (c *Controller) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, id)
}

func (c *Controller) observe(operation, outcome string) {
	if c.observer != nil {
		c.observer.ObserveMutation(operation, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case apperrors.IsNotFound(err):
		return "not_found"
	case apperrors.IsValidation(err):
		return "invalid"
	case apperrors.IsNetwork(err):
		return "network_error"
	default:
		return "error"
	}
}
