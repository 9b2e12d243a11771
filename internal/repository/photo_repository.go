package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yourorg/photo-onboarding/internal/model"

	"go.uber.org/zap"
)

// ErrPhotoNotFound is returned when a user has no uploaded photo
var ErrPhotoNotFound = errors.New("profile photo not found")

// PhotoRepository keeps the current profile photo of each user in memory
type PhotoRepository struct {
	mu     sync.RWMutex
	photos map[string]*model.ProfilePhoto
	logger *zap.Logger
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(logger *zap.Logger) *PhotoRepository {
	return &PhotoRepository{
		photos: make(map[string]*model.ProfilePhoto),
		logger: logger,
	}
}

// Get returns a copy of the user's photo record
func (r *PhotoRepository) Get(ctx context.Context, userID string) (*model.ProfilePhoto, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	photo, ok := r.photos[userID]
	if !ok {
		return nil, ErrPhotoNotFound
	}
	return clonePhoto(photo), nil
}

// ReplacePhoto stores a freshly uploaded photo and returns the one it replaced, if any.
// The new record carries no crop box.
func (r *PhotoRepository) ReplacePhoto(ctx context.Context, media model.MediaFile) (*model.ProfilePhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.photos[media.UserID]
	r.photos[media.UserID] = &model.ProfilePhoto{Media: media}

	r.logger.Debug("Profile photo replaced",
		zap.String("user_id", media.UserID),
		zap.String("media_id", media.ID))

	return previous, nil
}

// UpdateCrop records a committed crop on the photo identified by mediaID. It
// fails with ErrPhotoNotFound when the user has since uploaded another photo.
func (r *PhotoRepository) UpdateCrop(ctx context.Context, userID, mediaID string, box model.CropBox, thumbnail string) (*model.ProfilePhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	photo, ok := r.photos[userID]
	if !ok || photo.Media.ID != mediaID {
		return nil, ErrPhotoNotFound
	}

	now := time.Now()
	photo.CropBox = &box
	photo.Thumbnail = thumbnail
	photo.CroppedAt = &now

	return clonePhoto(photo), nil
}

func clonePhoto(p *model.ProfilePhoto) *model.ProfilePhoto {
	c := *p
	if p.CropBox != nil {
		box := *p.CropBox
		c.CropBox = &box
	}
	if p.CroppedAt != nil {
		t := *p.CroppedAt
		c.CroppedAt = &t
	}
	return &c
}
