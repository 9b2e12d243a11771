package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/photo-onboarding/internal/config"
	"github.com/yourorg/photo-onboarding/internal/model"

	"github.com/google/uuid"
)

// LocalStorage implements the Storage interface for local filesystem
type LocalStorage struct {
	basePath    string
	baseURL     string
	permissions os.FileMode
}

// NewLocalStorage creates a new LocalStorage
func NewLocalStorage(cfg *config.StorageConfig) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	perms, err := strconv.ParseUint(cfg.Permissions, 8, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid permissions format: %w", err)
	}

	return &LocalStorage{
		basePath:    cfg.BasePath,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		permissions: os.FileMode(perms),
	}, nil
}

// Store saves a file under <base>/<user>/<uuid><ext>
func (s *LocalStorage) Store(ctx context.Context, userID string, file model.File) (*model.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()

	dirPath := filepath.Join(s.basePath, safeSegment(userID))
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	filename := id + extension(file)
	filePath := filepath.Join(dirPath, filename)

	if err := os.WriteFile(filePath, file.Content, s.permissions); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	// WriteFile applies the umask
	if err := os.Chmod(filePath, s.permissions); err != nil {
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}

	return &model.MediaFile{
		ID:          id,
		UserID:      userID,
		FileName:    file.Name,
		ContentType: file.ContentType,
		Size:        int64(len(file.Content)),
		URL:         s.URL(userID, filename),
		CreatedAt:   time.Now(),
		StoragePath: filePath,
	}, nil
}

// Delete removes a file from the local filesystem
func (s *LocalStorage) Delete(ctx context.Context, media *model.MediaFile) error {
	if media == nil || media.StoragePath == "" {
		return nil
	}
	if err := os.Remove(media.StoragePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL implements Storage
func (s *LocalStorage) URL(userID, name string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, safeSegment(userID), name)
}

// BasePath is the directory served under the media URL
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func extension(file model.File) string {
	if ext := strings.ToLower(filepath.Ext(file.Name)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(file.ContentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// safeSegment keeps user ids from escaping the base directory
func safeSegment(s string) string {
	s = filepath.Base(filepath.Clean("/" + s))
	if s == "/" || s == "." || s == "" {
		return "_"
	}
	return s
}
