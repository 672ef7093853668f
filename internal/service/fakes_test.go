package service

import (
	"context"
	"time"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/repository"
)

type failingEntities struct {
	repository.EntityRepository
	failNext     error
	beforeAppend func()
}

func (f *failingEntities) AppendReply(ctx context.Context, kind domain.Kind, id string, entry *domain.TimelineEntry, status domain.Status, visitAt time.Time) (domain.Status, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	if f.beforeAppend != nil {
		hook := f.beforeAppend
		f.beforeAppend = nil
		hook()
	}
	return f.EntityRepository.AppendReply(ctx, kind, id, entry, status, visitAt)
}

type memStore struct {
	saved   []string
	removed []string
}

func (m *memStore) Save(_ context.Context, uploads []domain.Upload) ([]string, error) {
	var out []string
	for _, upload := range uploads {
		p := "uploads/" + upload.FileName
		out = append(out, p)
		m.saved = append(m.saved, p)
	}
	return out, nil
}

func (m *memStore) Remove(paths []string) {
	m.removed = append(m.removed, paths...)
}

type counterSeq struct {
	n   map[string]int64
	err error
}

func (c *counterSeq) NextSequence(_ context.Context, name string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.n[name]++
	return c.n[name], nil
}
