package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newStore(t *testing.T, maxBytes int64) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(config.StorageConfig{
		UploadDir:    filepath.Join(t.TempDir(), "files"),
		PublicPrefix: "/uploads/",
		MaxFileBytes: maxBytes,
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSaveReturnsRelativePaths(t *testing.T) {
	store := newStore(t, 1024)

	paths, err := store.Save(context.Background(), []domain.Upload{
		{FileName: "a.png", Data: pngHeader},
		{FileName: "b.png", Data: pngHeader},
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, "uploads/"), p)
		assert.True(t, strings.HasSuffix(p, ".png"), p)
		_, statErr := os.Stat(filepath.Join(store.Dir(), filepath.Base(p)))
		assert.NoError(t, statErr)
	}
	assert.NotEqual(t, paths[0], paths[1])
}

func TestSaveRejectsAndCleansUp(t *testing.T) {
	store := newStore(t, 1024)

	_, err := store.Save(context.Background(), []domain.Upload{
		{FileName: "a.png", Data: pngHeader},
		{FileName: "notes.txt", Data: []byte("plain text body")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	entries, readErr := os.ReadDir(store.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestSaveRejectsOversizedAndEmpty(t *testing.T) {
	store := newStore(t, 8)

	_, err := store.Save(context.Background(), []domain.Upload{{FileName: "big.png", Data: pngHeader}})
	assert.True(t, apperrors.IsValidation(err))

	_, err = store.Save(context.Background(), []domain.Upload{{FileName: "empty.png"}})
	assert.True(t, apperrors.IsValidation(err))
}
