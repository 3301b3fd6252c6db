// Package upload stores user documents in object storage.
package upload

import (
	"context"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
)

// ObjectStore persists one object and returns where it can be fetched.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// File is an uploaded file.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
	Size        int64
}

var ErrNoFile = domain.NewError(domain.ErrCodeInvalid, "No file passed")

// Service places files under the uploader's document folder.
type Service struct {
	store  ObjectStore
	folder string
	logger *zap.Logger
}

func NewService(store ObjectStore, folder string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, folder: strings.Trim(folder, "/"), logger: logger}
}

// Key returns the object key for a user's document.
func (s *Service) Key(uid, filename string) string {
	return path.Join(s.folder, "__ocxers__", uid, "documents", path.Base("/"+filename))
}

// Upload stores f for uid and returns its location.
func (s *Service) Upload(ctx context.Context, uid string, f File) (string, error) {
	if f.Body == nil {
		return "", ErrNoFile
	}
	if uid == "" {
		return "", domain.ErrUnauthorized
	}
	name := strings.TrimSpace(f.Name)
	if name == "" || path.Base("/"+name) == "/" {
		return "", domain.NewError(domain.ErrCodeInvalid, "filename is required")
	}
	key := s.Key(uid, name)
	location, err := s.store.Put(ctx, key, f.ContentType, f.Body, f.Size)
	if err != nil {
		s.logger.Error("upload failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	s.logger.Info("file uploaded", zap.String("key", key), zap.Int64("size", f.Size))
	return location, nil
}
