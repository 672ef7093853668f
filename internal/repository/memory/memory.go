// Package memory provides in-process repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/repository"
)

// Store holds users, outlets and entities. Missing rows surface as
// pgx.ErrNoRows so callers treat it like the Postgres repositories.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]domain.User
	outlets  map[string]domain.Outlet
	entities map[string]*entityRow
	now      func() time.Time
}

type entityRow struct {
	seq    int64
	entity domain.Entity
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:    map[string]domain.User{},
		outlets:  map[string]domain.Outlet{},
		entities: map[string]*entityRow{},
		now:      time.Now,
	}
}

// Entities returns the entity repository view.
func (s *Store) Entities() repository.EntityRepository { return entityRepo{s} }

// Outlets returns the outlet repository view.
func (s *Store) Outlets() repository.OutletRepository { return outletRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

type entityRepo struct{ s *Store }

func (r entityRepo) Create(_ context.Context, entity *domain.Entity) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.entities {
		if row.entity.Kind == entity.Kind && row.entity.DisplayID == entity.DisplayID {
			return &duplicateKeyError{key: entity.DisplayID}
		}
	}
	s.seq++
	now := s.now()
	entity.ID = uuid.NewString()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if owner, ok := s.users[entity.Owner.ID]; ok {
		entity.Owner.Name = owner.Name
	}
	s.entities[entity.ID] = &entityRow{seq: s.seq, entity: entity.Clone()}
	return nil
}

func (r entityRepo) GetByID(_ context.Context, kind domain.Kind, id string) (*domain.Entity, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.entities[id]
	if !ok || row.entity.Kind != kind {
		return nil, pgx.ErrNoRows
	}
	out := row.entity.Clone()
	return &out, nil
}

func (r entityRepo) List(_ context.Context, filter repository.EntityFilter) ([]domain.Entity, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*entityRow, 0, len(s.entities))
	for _, row := range s.entities {
		if row.entity.Kind != filter.Kind {
			continue
		}
		if filter.OwnerID != nil && row.entity.Owner.ID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, row.entity.Status) {
			continue
		}
		rows = append(rows, row)
	}
	// Newest first, insertion order breaking ties.
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []domain.Entity{}, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]domain.Entity, 0, end-offset)
	for _, row := range rows[offset:end] {
		out = append(out, row.entity.Clone())
	}
	return out, nil
}

func (r entityRepo) UpdateStatus(_ context.Context, kind domain.Kind, id string, status domain.Status, visitAt *time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entities[id]
	if !ok || row.entity.Kind != kind {
		return pgx.ErrNoRows
	}
	row.entity.Status = status
	if visitAt != nil {
		visit := *visitAt
		row.entity.AssignedVisitAt = &visit
	}
	row.entity.UpdatedAt = s.now()
	return nil
}

func (r entityRepo) AppendReply(_ context.Context, kind domain.Kind, id string, entry *domain.TimelineEntry, status domain.Status, visitAt time.Time) (domain.Status, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entities[id]
	if !ok || row.entity.Kind != kind {
		return "", pgx.ErrNoRows
	}
	entry.ID = uuid.NewString()
	entry.EntityID = id
	if entry.AddedAt.IsZero() {
		entry.AddedAt = s.now()
	}
	row.entity.Timeline = append(row.entity.Timeline, entry.Clone())
	if status != "" {
		row.entity.Status = status
	}
	visit := visitAt
	row.entity.AssignedVisitAt = &visit
	row.entity.UpdatedAt = s.now()
	return row.entity.Status, nil
}

func (r entityRepo) Delete(_ context.Context, kind domain.Kind, id string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.entities[id]
	if !ok || row.entity.Kind != kind {
		return pgx.ErrNoRows
	}
	delete(s.entities, id)
	return nil
}

type outletRepo struct{ s *Store }

func (r outletRepo) Create(_ context.Context, outlet *domain.Outlet) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	outlet.ID = uuid.NewString()
	outlet.CreatedAt = s.now()
	s.outlets[outlet.ID] = *outlet
	return nil
}

func (r outletRepo) GetByID(_ context.Context, id string) (*domain.Outlet, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	outlet, ok := s.outlets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &outlet, nil
}

func (r outletRepo) ListByUser(_ context.Context, userID string) ([]domain.Outlet, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Outlet{}
	for _, outlet := range s.outlets {
		if outlet.UserID == userID {
			out = append(out, outlet)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return &duplicateKeyError{key: email}
		}
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type duplicateKeyError struct{ key string }

func (e *duplicateKeyError) Error() string { return "duplicate key " + e.key }

func containsStatus(statuses []domain.Status, s domain.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
