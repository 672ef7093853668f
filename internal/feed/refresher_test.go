package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingReloader struct {
	resets atomic.Int32
	err    error
}

func (c *countingReloader) Load(ctx context.Context, reset bool) error {
	if reset {
		c.resets.Add(1)
	}
	return c.err
}

type modal bool

func (m *modal) ModalOpen() bool { return bool(*m) }

func TestTickReloadsWhenVisible(t *testing.T) {
	target := &countingReloader{}
	r := NewRefresher(target, time.Minute, zap.NewNop())

	assert.True(t, r.Tick(context.Background()))
	assert.Equal(t, int32(1), target.resets.Load())
}

func TestTickSkippedWhileHidden(t *testing.T) {
	target := &countingReloader{}
	r := NewRefresher(target, time.Minute, nil)

	r.SetVisible(false)
	assert.False(t, r.Tick(context.Background()))
	r.SetVisible(true)
	assert.True(t, r.Tick(context.Background()))
	assert.Equal(t, int32(1), target.resets.Load())
}

func TestTickSkippedWhileModalOpen(t *testing.T) {
	target := &countingReloader{}
	open := modal(true)
	r := NewRefresher(target, time.Minute, nil, &open)

	assert.False(t, r.Tick(context.Background()))
	open = false
	assert.True(t, r.Tick(context.Background()))
	assert.Equal(t, int32(1), target.resets.Load())
}

func TestTickIgnoresBusyFeed(t *testing.T) {
	target := &countingReloader{err: ErrLoadInFlight}
	r := NewRefresher(target, time.Minute, nil)
	assert.False(t, r.Tick(context.Background()))
}

func TestStartStopLifecycle(t *testing.T) {
	target := &countingReloader{}
	r := NewRefresher(target, time.Second, nil)

	require.NoError(t, r.Start())
	assert.Error(t, r.Start())
	require.Eventually(t, func() bool { return target.resets.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	r.Stop()

	after := target.resets.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, target.resets.Load())
	r.Stop()
}

func TestStartRejectsSubSecondInterval(t *testing.T) {
	r := NewRefresher(&countingReloader{}, 100*time.Millisecond, nil)
	assert.Error(t, r.Start())
}
