package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reloader is the part of a Feed the refresher drives.
type Reloader interface {
	Load(ctx context.Context, reset bool) error
}

// ModalGate reports whether a destructive confirmation is open.
type ModalGate interface {
	ModalOpen() bool
}

// Refresher periodically reloads a feed from page 1. It is an owned handle:
// created when a view mounts, stopped when it unmounts. Ticks are skipped while
// the view is hidden or any gate reports an open modal.
type Refresher struct {
	target   Reloader
	interval time.Duration
	logger   *zap.Logger
	gates    []ModalGate

	mu      sync.Mutex
	cron    *cron.Cron
	visible bool
}

// NewRefresher builds a stopped refresher. The view starts visible.
func NewRefresher(target Reloader, interval time.Duration, logger *zap.Logger, gates ...ModalGate) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		target:   target,
		interval: interval,
		logger:   logger,
		gates:    gates,
		visible:  true,
	}
}

// Start schedules the periodic reload.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("refresher already started")
	}
	if r.interval < time.Second {
		return fmt.Errorf("refresh interval %s below one second", r.interval)
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	c.Start()
	r.cron = c
	r.logger.Debug("feed refresher started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the schedule and waits for a running tick to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Debug("feed refresher stopped")
}

// SetVisible records whether the owning view is visible.
func (r *Refresher) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = visible
}

// Tick performs one refresh if allowed and reports whether a reload ran.
func (r *Refresher) Tick(ctx context.Context) bool {
	r.mu.Lock()
	visible := r.visible
	r.mu.Unlock()
	if !visible {
		return false
	}
	for _, gate := range r.gates {
		if gate != nil && gate.ModalOpen() {
			r.logger.Debug("refresh skipped while confirmation is open")
			return false
		}
	}

	if r.interval > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.interval)
		defer cancel()
	}
	err := r.target.Load(ctx, true)
	switch {
	case errors.Is(err, ErrLoadInFlight), errors.Is(err, ErrClosed):
		return false
	case err != nil:
		r.logger.Warn("background refresh failed", zap.Error(err))
	}
	return true
}
