package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/domain"
)

// SequenceSource hands out monotonically increasing numbers per name.
type SequenceSource interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// DisplayIDs issues human-readable codes such as TCK-000042.
type DisplayIDs struct {
	seq    SequenceSource
	logger *zap.Logger
}

// NewDisplayIDs builds a generator. A nil source always uses the random fallback.
func NewDisplayIDs(seq SequenceSource, logger *zap.Logger) *DisplayIDs {
	return &DisplayIDs{seq: seq, logger: logger}
}

// Next returns the next code for kind.
func (d *DisplayIDs) Next(ctx context.Context, kind domain.Kind) string {
	if d.seq != nil {
		n, err := d.seq.NextSequence(ctx, string(kind))
		if err == nil {
			return fmt.Sprintf("%s-%06d", kind.DisplayPrefix(), n)
		}
		d.logger.Warn("display id sequence unavailable; using random code", zap.Error(err))
	}
	return randomDisplayID(kind)
}

func randomDisplayID(kind domain.Kind) string {
	return kind.DisplayPrefix() + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
