package storage

import (
	"context"

	"github.com/yourorg/photo-onboarding/internal/model"
)

// Storage defines the interface for photo storage operations
type Storage interface {
	// Store saves the uploaded content and returns metadata about the stored file
	Store(ctx context.Context, userID string, file model.File) (*model.MediaFile, error)

	// Delete removes a stored file
	Delete(ctx context.Context, media *model.MediaFile) error

	// URL returns the public address of a file name in the user's directory
	URL(userID, name string) string
}
