package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LocalStore writes attachments to a directory served under a public prefix.
type LocalStore struct {
	dir      string
	prefix   string
	maxBytes int64
	logger   *zap.Logger
}

// NewLocalStore prepares the upload directory.
func NewLocalStore(cfg config.StorageConfig, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	prefix := strings.Trim(cfg.PublicPrefix, "/")
	if prefix == "" {
		prefix = "uploads"
	}
	return &LocalStore{dir: cfg.UploadDir, prefix: prefix, maxBytes: cfg.MaxFileBytes, logger: logger}, nil
}

// Prefix returns the public path prefix stored attachments are referenced by.
func (s *LocalStore) Prefix() string {
	return s.prefix
}

// Dir returns the directory holding stored files.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save stores every upload and returns their relative paths in order.
// Nothing is left on disk when any upload is rejected.
func (s *LocalStore) Save(ctx context.Context, uploads []domain.Upload) ([]string, error) {
	paths := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		if err := ctx.Err(); err != nil {
			s.Remove(paths)
			return nil, err
		}
		stored, err := s.saveOne(upload)
		if err != nil {
			s.Remove(paths)
			if apperrors.CodeOf(err) == "" {
				return nil, apperrors.NewInternalError(err)
			}
			if de, ok := err.(*apperrors.DomainError); ok {
				de.Details["index"] = i
			}
			return nil, err
		}
		paths = append(paths, stored)
	}
	return paths, nil
}

func (s *LocalStore) saveOne(upload domain.Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", apperrors.NewValidationError("empty file", map[string]any{"file": upload.FileName})
	}
	if s.maxBytes > 0 && int64(len(upload.Data)) > s.maxBytes {
		return "", apperrors.NewValidationError("file too large", map[string]any{
			"file":      upload.FileName,
			"max_bytes": s.maxBytes,
		})
	}
	contentType := http.DetectContentType(upload.Data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", apperrors.NewValidationError("unsupported file type", map[string]any{
			"file":         upload.FileName,
			"content_type": contentType,
		})
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), upload.Data, 0o644); err != nil {
		return "", err
	}
	s.logger.Debug("attachment stored", zap.String("file", name), zap.Int("bytes", len(upload.Data)))
	return path.Join(s.prefix, name), nil
}

// Remove deletes previously stored attachments, ignoring missing files.
func (s *LocalStore) Remove(paths []string) {
	for _, p := range paths {
		name := path.Base(p)
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove attachment failed", zap.String("path", p), zap.Error(err))
		}
	}
}
