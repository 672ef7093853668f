package timeline

import (
	"strings"
	"time"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/status"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// ValidateEntry checks the note and attachment rules of a timeline entry.
func ValidateEntry(entry domain.TimelineEntry) error {
	if strings.TrimSpace(entry.Note) == "" {
		return apperrors.NewValidationError("note required", nil)
	}
	if len(entry.Images) > domain.MaxEntryImages {
		return apperrors.NewValidationError("too many images", map[string]any{
			"max":   domain.MaxEntryImages,
			"count": len(entry.Images),
		})
	}
	for i, item := range entry.PriceList {
		if strings.TrimSpace(item.Description) == "" {
			return apperrors.NewValidationError("price item description required", map[string]any{"index": i})
		}
		if item.Price < 0 {
			return apperrors.NewValidationError("price must not be negative", map[string]any{"index": i})
		}
	}
	if entry.TotalPrice != nil && *entry.TotalPrice < 0 {
		return apperrors.NewValidationError("total price must not be negative", nil)
	}
	return nil
}

// Append returns a copy of entity with entry added at the tail of its timeline.
// Existing entries are copied untouched; entity itself is not modified.
func Append(entity domain.Entity, entry domain.TimelineEntry) (domain.Entity, error) {
	if err := ValidateEntry(entry); err != nil {
		return entity, err
	}
	out := entity.Clone()
	entry = entry.Clone()
	entry.Note = strings.TrimSpace(entry.Note)
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	if entry.EntityID == "" {
		entry.EntityID = entity.ID
	}
	out.Timeline = append(out.Timeline, entry)
	return out, nil
}

// AppendReply appends entry and, in the same step, sets the visit time and the
// target status. Either every field changes or the entity is returned as given.
func AppendReply(entity domain.Entity, entry domain.TimelineEntry, visitAt time.Time, target domain.Status) (domain.Entity, error) {
	if visitAt.IsZero() {
		return entity, apperrors.NewSchedulingError("past", "visit time required")
	}
	if target == "" {
		target = entity.Status
	}
	target = status.Normalize(target)
	if !status.Valid(entity.Kind, target) {
		return entity, apperrors.NewValidationError("invalid status", map[string]any{"status": target})
	}
	out, err := Append(entity, entry)
	if err != nil {
		return entity, err
	}
	visit := visitAt
	out.AssignedVisitAt = &visit
	out.Status = target
	return out, nil
}
