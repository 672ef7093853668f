// Package feed keeps a locally cached, incrementally growing list of entities
// backed by a paged remote API.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/domain"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 10

var (
	// ErrLoadInFlight is returned when a page request is already outstanding.
	ErrLoadInFlight = errors.New("feed: load already in flight")
	// ErrClosed is returned once the feed has been torn down.
	ErrClosed = errors.New("feed: closed")
)

// State is the loading state of a feed.
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateLoadingMore State = "loading_more"
	StateRefreshing  State = "refreshing"
	StateReady       State = "ready"
	StateError       State = "error"
)

// Page is one page of results from the remote API.
type Page struct {
	Items   []domain.Entity
	HasMore bool
}

// Source fetches pages of entities. Pages are 1-based.
type Source interface {
	ListPage(ctx context.Context, kind domain.Kind, page, limit int) (Page, error)
}

// Snapshot is a consistent copy of the feed's observable state.
type Snapshot struct {
	Kind        domain.Kind
	State       State
	CurrentPage int
	HasMore     bool
	Err         error
	Items       []domain.Entity
}

// Feed is the paged cache for a single entity kind. It is safe for concurrent use;
// at most one page request is outstanding at any time.
type Feed struct {
	kind     domain.Kind
	source   Source
	pageSize int
	logger   *zap.Logger

	mu       sync.Mutex
	items    []domain.Entity
	page     int
	hasMore  bool
	loaded   bool
	state    State
	err      error
	inFlight bool
	closed   bool
}

// Option configures a Feed.
type Option func(*Feed)

// WithPageSize sets the number of entities requested per page.
func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates an idle feed for kind.
func New(kind domain.Kind, source Source, opts ...Option) *Feed {
	f := &Feed{
		kind:     kind,
		source:   source,
		pageSize: DefaultPageSize,
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Kind returns the entity kind served by the feed.
func (f *Feed) Kind() domain.Kind {
	return f.kind
}

// Load fetches the next page, or page 1 when reset is true.
//
// A reset replaces the whole collection once page 1 arrives; until then the
// previous items stay visible. On failure the collection is left untouched and
// the feed moves to StateError.
func (f *Feed) Load(ctx context.Context, reset bool) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.inFlight {
		f.mu.Unlock()
		return ErrLoadInFlight
	}
	page := f.page + 1
	switch {
	case reset && f.loaded:
		page = 1
		f.state = StateRefreshing
	case reset || !f.loaded:
		page = 1
		f.state = StateLoading
	default:
		f.state = StateLoadingMore
	}
	f.inFlight = true
	f.mu.Unlock()

	result, err := f.source.ListPage(ctx, f.kind, page, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if f.closed {
		f.logger.Debug("dropping page for closed feed", zap.String("kind", string(f.kind)), zap.Int("page", page))
		return ErrClosed
	}
	if err != nil {
		f.state = StateError
		f.err = err
		f.logger.Warn("feed page load failed",
			zap.String("kind", string(f.kind)),
			zap.Int("page", page),
			zap.Error(err))
		return err
	}

	if page == 1 {
		f.items = mergeUnique(nil, result.Items)
	} else {
		f.items = mergeUnique(f.items, result.Items)
	}
	f.page = page
	f.hasMore = result.HasMore
	f.loaded = true
	f.state = StateReady
	f.err = nil
	f.logger.Debug("feed page loaded",
		zap.String("kind", string(f.kind)),
		zap.Int("page", page),
		zap.Int("received", len(result.Items)),
		zap.Int("total", len(f.items)),
		zap.Bool("has_more", result.HasMore))
	return nil
}

// SentinelReached is called when the last rendered element becomes visible.
// It loads the next page when more data exists and nothing is in flight, and
// reports whether a load was started.
func (f *Feed) SentinelReached(ctx context.Context) (bool, error) {
	f.mu.Lock()
	ready := !f.closed && f.loaded && f.hasMore && !f.inFlight
	f.mu.Unlock()
	if !ready {
		return false, nil
	}
	err := f.Load(ctx, false)
	if errors.Is(err, ErrLoadInFlight) || errors.Is(err, ErrClosed) {
		return false, nil
	}
	return true, err
}

// Replace swaps the cached entity with the same ID, keeping its position.
func (f *Feed) Replace(entity domain.Entity) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == entity.ID {
			f.items[i] = entity.Clone()
			return true
		}
	}
	return false
}

// Remove drops the entity with id from the cache.
func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a copy of the cached entity with id.
func (f *Feed) Get(id string) (domain.Entity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			return f.items[i].Clone(), true
		}
	}
	return domain.Entity{}, false
}

// Items returns a copy of the cached entities in display order.
func (f *Feed) Items() []domain.Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneAll(f.items)
}

// Len returns the number of cached entities.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Snapshot returns the current state of the feed.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Kind:        f.kind,
		State:       f.state,
		CurrentPage: f.page,
		HasMore:     f.hasMore,
		Err:         f.err,
		Items:       cloneAll(f.items),
	}
}

// Close tears the feed down. Responses arriving afterwards are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// mergeUnique appends incoming to existing, skipping IDs already present.
// A repeated ID refreshes the cached copy in place.
func mergeUnique(existing, incoming []domain.Entity) []domain.Entity {
	out := make([]domain.Entity, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, e := range existing {
		if _, dup := index[e.ID]; dup {
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	for _, e := range incoming {
		if pos, dup := index[e.ID]; dup {
			out[pos] = e.Clone()
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e.Clone())
	}
	return out
}

func cloneAll(items []domain.Entity) []domain.Entity {
	out := make([]domain.Entity, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}
