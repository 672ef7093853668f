package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
)

func TestNextSequenceIncrementsPerName(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, zap.NewNop())
	t.Cleanup(r.Close)

	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	first, err := r.NextSequence(ctx, "ticket")
	require.NoError(t, err)
	second, err := r.NextSequence(ctx, "ticket")
	require.NoError(t, err)
	other, err := r.NextSequence(ctx, "service_request")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), other)

	val, err := mr.Get("test:seq:ticket")
	require.NoError(t, err)
	assert.Equal(t, "2", val)
}

func TestNextSequenceWithoutClient(t *testing.T) {
	var r *Redis
	_, err := r.NextSequence(context.Background(), "ticket")
	assert.ErrorIs(t, err, ErrRedisDisabled)
	assert.ErrorIs(t, r.Ping(context.Background()), ErrRedisDisabled)
}
