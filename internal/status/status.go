// Package status holds the canonical status vocabulary of tickets and service
// requests together with the presentation metadata used wherever a status is shown.
package status

import (
	"strings"

	"github.com/spec-kit/service-portal/internal/domain"
)

// Bucket groups statuses for counting.
type Bucket string

const (
	BucketNew        Bucket = "new"
	BucketInProgress Bucket = "in_progress"
	BucketTerminal   Bucket = "terminal"
	BucketUnknown    Bucket = "unknown"
)

var statusesByKind = map[domain.Kind][]domain.Status{
	domain.KindTicket:         {domain.StatusNew, domain.StatusInProgress, domain.StatusClosed},
	domain.KindServiceRequest: {domain.StatusNew, domain.StatusInProgress, domain.StatusCompleted},
}

// Normalize maps legacy aliases onto their canonical value.
func Normalize(s domain.Status) domain.Status {
	if s == domain.StatusOpen {
		return domain.StatusNew
	}
	return s
}

// Classify places s into a counting bucket. Unrecognised values land in BucketUnknown.
func Classify(s domain.Status) Bucket {
	switch Normalize(s) {
	case domain.StatusNew:
		return BucketNew
	case domain.StatusInProgress:
		return BucketInProgress
	case domain.StatusClosed, domain.StatusCompleted:
		return BucketTerminal
	default:
		return BucketUnknown
	}
}

// Statuses returns the selectable statuses for kind in workflow order.
func Statuses(kind domain.Kind) []domain.Status {
	return append([]domain.Status(nil), statusesByKind[kind]...)
}

// Valid reports whether s, once normalized, belongs to the vocabulary of kind.
//
// Any enumerated status is accepted regardless of the current one: admins may
// move an entity backwards or straight to the terminal value.
func Valid(kind domain.Kind, s domain.Status) bool {
	s = Normalize(s)
	for _, candidate := range statusesByKind[kind] {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal returns the closing status for kind.
func Terminal(kind domain.Kind) domain.Status {
	if kind == domain.KindServiceRequest {
		return domain.StatusCompleted
	}
	return domain.StatusClosed
}

// IsTerminal reports whether s is a closing status. Terminal entities remain mutable.
func IsTerminal(s domain.Status) bool {
	return Classify(s) == BucketTerminal
}

// Parse resolves user input such as "in progress" or "IN_PROGRESS" to a status of kind.
func Parse(kind domain.Kind, raw string) (domain.Status, bool) {
	key := canonicalKey(raw)
	if key == canonicalKey(string(domain.StatusOpen)) {
		return domain.StatusNew, true
	}
	for _, candidate := range statusesByKind[kind] {
		if canonicalKey(string(candidate)) == key {
			return candidate, true
		}
	}
	return "", false
}

func canonicalKey(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(raw)
}
