package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/events"
	"github.com/spec-kit/service-portal/internal/repository"
	"github.com/spec-kit/service-portal/internal/status"
	"github.com/spec-kit/service-portal/internal/timeline"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// AttachmentStore persists uploaded images and returns their relative paths.
type AttachmentStore interface {
	Save(ctx context.Context, uploads []domain.Upload) ([]string, error)
	Remove(paths []string)
}

// PortalService coordinates ticket and service request workflows.
type PortalService struct {
	entities    repository.EntityRepository
	outlets     repository.OutletRepository
	attachments AttachmentStore
	displayIDs  *DisplayIDs
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// PortalDependencies bundles collaborators for the portal service.
type PortalDependencies struct {
	EntityRepo  repository.EntityRepository
	OutletRepo  repository.OutletRepository
	Attachments AttachmentStore
	DisplayIDs  *DisplayIDs
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// CreateInput describes the creation form.
type CreateInput struct {
	Category    domain.Category
	Title       string
	Description string
	OutletID    string
	Images      []domain.Upload
}

// ListResult is one page of entities.
type ListResult struct {
	Items   []domain.Entity
	HasMore bool
}

// NewPortalService constructs the service.
func NewPortalService(deps PortalDependencies) *PortalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	displayIDs := deps.DisplayIDs
	if displayIDs == nil {
		displayIDs = NewDisplayIDs(nil, logger)
	}
	return &PortalService{
		entities:    deps.EntityRepo,
		outlets:     deps.OutletRepo,
		attachments: deps.Attachments,
		displayIDs:  displayIDs,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         clock,
	}
}

// Create files a new entity of kind for the caller against one of their outlets.
func (s *PortalService) Create(ctx context.Context, actor *domain.User, kind domain.Kind, input CreateInput) (*domain.Entity, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if err := validateCreate(kind, input); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(input.OutletID); err != nil {
		return nil, apperrors.NewValidationError("unknown outlet", map[string]any{"outletId": input.OutletID})
	}
	outlet, err := s.outlets.GetByID(ctx, input.OutletID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("unknown outlet", map[string]any{"outletId": input.OutletID})
		}
		return nil, err
	}
	if outlet.UserID != actor.ID && !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("outlet belongs to another account")
	}

	images, err := s.storeImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}

	entity := &domain.Entity{
		Kind:        kind,
		DisplayID:   s.displayIDs.Next(ctx, kind),
		Category:    input.Category,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.StatusNew,
		OutletName:  outlet.Name,
		Address:     outlet.Address,
		Location:    outlet.Location,
		Images:      images,
		Owner:       domain.OwnerRef{ID: actor.ID, Name: actor.Name},
	}
	if err := s.entities.Create(ctx, entity); err != nil {
		s.removeImages(images)
		return nil, err
	}

	s.publishEvent(ctx, actor, entity, events.EventEntityCreated, events.EntityCreatedPayload{
		Category:   entity.Category,
		Title:      entity.Title,
		OutletName: entity.OutletName,
	})
	return entity, nil
}

// List returns page (1-based) of entities visible to the caller, newest first.
// When statuses is non-empty only entities in one of them are returned.
func (s *PortalService) List(ctx context.Context, actor *domain.User, kind domain.Kind, page, limit int, statuses ...domain.Status) (ListResult, error) {
	if actor == nil {
		return ListResult{}, apperrors.NewUnauthorized("authentication required")
	}
	if !kind.Valid() {
		return ListResult{}, apperrors.NewValidationError("unknown kind", map[string]any{"kind": kind})
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return ListResult{}, apperrors.NewValidationError("limit must be positive", map[string]any{"limit": limit})
	}

	wanted, err := statusFilter(kind, statuses)
	if err != nil {
		return ListResult{}, err
	}

	filter := repository.EntityFilter{
		Kind:     kind,
		Statuses: wanted,
		Limit:    limit + 1,
		Offset:   (page - 1) * limit,
	}
	if !actor.IsAdmin() {
		filter.OwnerID = &actor.ID
	}

	items, err := s.entities.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.HasMore = true
	}
	if result.Items == nil {
		result.Items = []domain.Entity{}
	}
	return result, nil
}

// Get returns one entity with its timeline.
func (s *PortalService) Get(ctx context.Context, actor *domain.User, kind domain.Kind, id string) (*domain.Entity, error) {
	return s.loadAccessible(ctx, actor, kind, id)
}

// UpdateStatus sets the status of an entity. Only admins may call it.
// Any enumerated status of the kind is accepted from any current status.
func (s *PortalService) UpdateStatus(ctx context.Context, actor *domain.User, kind domain.Kind, id string, target domain.Status, visitAt *time.Time) (*domain.Entity, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	target = status.Normalize(target)
	if !status.Valid(kind, target) {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  target,
			"allowed": status.Statuses(kind),
		})
	}

	entity, err := s.loadAccessible(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	oldStatus := entity.Status

	if err := s.entities.UpdateStatus(ctx, kind, id, target, visitAt); err != nil {
		return nil, mapMissing(kind, id, err)
	}
	entity.Status = target
	if visitAt != nil {
		visit := *visitAt
		entity.AssignedVisitAt = &visit
	}
	entity.UpdatedAt = s.now()

	s.publishEvent(ctx, actor, entity, events.EventStatusChanged, events.StatusChangedPayload{
		OldStatus: oldStatus,
		NewStatus: target,
		VisitAt:   visitAt,
	})
	return entity, nil
}

// AppendReply adds a timeline entry and, in the same step, sets the visit time
// and status. Non-admin callers may reply on their own entities but cannot
// change the status.
func (s *PortalService) AppendReply(ctx context.Context, actor *domain.User, kind domain.Kind, id string, reply domain.ReplySubmission) (*domain.Entity, error) {
	entity, err := s.loadAccessible(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	if reply.Status != "" && !actor.IsAdmin() && status.Normalize(reply.Status) != status.Normalize(entity.Status) {
		return nil, apperrors.NewForbidden("only admins can change the status")
	}
	if len(reply.Images) > domain.MaxEntryImages {
		return nil, apperrors.NewValidationError("too many images", map[string]any{
			"max":   domain.MaxEntryImages,
			"count": len(reply.Images),
		})
	}

	entry := domain.TimelineEntry{
		Note:       reply.Note,
		AddedBy:    actor.Name,
		AddedAt:    s.now(),
		PriceList:  reply.PriceList,
		TotalPrice: reply.TotalPrice,
	}
	// Validate before any file is written.
	if _, err := timeline.AppendReply(*entity, entry, reply.VisitAt, reply.Status); err != nil {
		return nil, err
	}

	images, err := s.storeImages(ctx, reply.Images)
	if err != nil {
		return nil, err
	}
	entry.Images = images

	updated, err := timeline.AppendReply(*entity, entry, reply.VisitAt, reply.Status)
	if err != nil {
		s.removeImages(images)
		return nil, err
	}

	// An empty target leaves the stored status as it is at write time.
	var target domain.Status
	if reply.Status != "" {
		target = updated.Status
	}
	stored := updated.Timeline[len(updated.Timeline)-1]
	current, err := s.entities.AppendReply(ctx, kind, id, &stored, target, reply.VisitAt)
	if err != nil {
		s.removeImages(images)
		return nil, mapMissing(kind, id, err)
	}
	updated.Timeline[len(updated.Timeline)-1] = stored
	updated.Status = current
	updated.UpdatedAt = s.now()

	s.publishEvent(ctx, actor, &updated, events.EventReplyAdded, events.ReplyAddedPayload{
		EntryID:     stored.ID,
		AddedBy:     stored.AddedBy,
		NotePreview: stringPreview(stored.Note, 120),
		Status:      updated.Status,
		VisitAt:     reply.VisitAt,
		TotalPrice:  stored.TotalPrice,
	})
	if target != "" && updated.Status != entity.Status {
		s.publishEvent(ctx, actor, &updated, events.EventStatusChanged, events.StatusChangedPayload{
			OldStatus: entity.Status,
			NewStatus: updated.Status,
			VisitAt:   updated.AssignedVisitAt,
		})
	}
	return &updated, nil
}

// Delete removes an entity. Deleting an entity that is already gone is NotFound.
func (s *PortalService) Delete(ctx context.Context, actor *domain.User, kind domain.Kind, id string) error {
	entity, err := s.loadAccessible(ctx, actor, kind, id)
	if err != nil {
		return err
	}
	if err := s.entities.Delete(ctx, kind, id); err != nil {
		return mapMissing(kind, id, err)
	}
	s.removeImages(imagesOf(entity))
	s.publishEvent(ctx, actor, entity, events.EventEntityDeleted, nil)
	return nil
}

// statusFilter normalizes requested statuses. Asking for New also matches
// rows still stored under the legacy Open alias.
func statusFilter(kind domain.Kind, requested []domain.Status) ([]domain.Status, error) {
	var out []domain.Status
	for _, raw := range requested {
		parsed, ok := status.Parse(kind, string(raw))
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{
				"status":  raw,
				"allowed": status.Statuses(kind),
			})
		}
		out = append(out, parsed)
		if parsed == domain.StatusNew {
			out = append(out, domain.StatusOpen)
		}
	}
	return out, nil
}

func imagesOf(entity *domain.Entity) []string {
	paths := append([]string(nil), entity.Images...)
	for _, entry := range entity.Timeline {
		paths = append(paths, entry.Images...)
	}
	return paths
}

func (s *PortalService) loadAccessible(ctx context.Context, actor *domain.User, kind domain.Kind, id string) (*domain.Entity, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("unknown kind", map[string]any{"kind": kind})
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound(resourceName(kind), map[string]any{"id": id})
	}
	entity, err := s.entities.GetByID(ctx, kind, id)
	if err != nil {
		return nil, mapMissing(kind, id, err)
	}
	if entity.Owner.ID != actor.ID && !actor.IsAdmin() {
		// Hide other accounts' entities entirely.
		return nil, apperrors.NewNotFound(resourceName(kind), map[string]any{"id": id})
	}
	return entity, nil
}

func (s *PortalService) storeImages(ctx context.Context, uploads []domain.Upload) ([]string, error) {
	if len(uploads) == 0 {
		return []string{}, nil
	}
	if s.attachments == nil {
		return nil, apperrors.NewValidationError("attachments not supported", nil)
	}
	return s.attachments.Save(ctx, uploads)
}

func (s *PortalService) removeImages(paths []string) {
	if s.attachments != nil && len(paths) > 0 {
		s.attachments.Remove(paths)
	}
}

func (s *PortalService) publishEvent(ctx context.Context, actor *domain.User, entity *domain.Entity, eventType events.EventType, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Kind:      entity.Kind,
		EntityID:  entity.ID,
		DisplayID: entity.DisplayID,
		Actor:     events.Actor{UserID: actor.ID, Role: actor.Role},
		Timestamp: s.now(),
		Payload:   payload,
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateCreate(kind domain.Kind, input CreateInput) error {
	details := map[string]any{}
	if !kind.Valid() {
		details["kind"] = "unknown kind"
	}
	if !input.Category.Valid() {
		details["category"] = "unknown category"
	}
	if strings.TrimSpace(input.Title) == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if strings.TrimSpace(input.OutletID) == "" {
		details["outletId"] = "required"
	}
	if len(input.Images) > domain.MaxCreateImages {
		details["images"] = "too many images"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid submission", details)
	}
	return nil
}

func mapMissing(kind domain.Kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resourceName(kind), map[string]any{"id": id})
	}
	return err
}

func resourceName(kind domain.Kind) string {
	if kind == domain.KindServiceRequest {
		return "service request"
	}
	return "ticket"
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
