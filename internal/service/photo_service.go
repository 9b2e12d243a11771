package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/photo-onboarding/internal/config"
	"github.com/yourorg/photo-onboarding/internal/events"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/repository"
	"github.com/yourorg/photo-onboarding/internal/storage"
	"github.com/yourorg/photo-onboarding/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Rejection reasons returned to the widget
const (
	ReasonNoPhoto       = "Сначала загрузите фотографию."
	ReasonNotImage      = "Файл не является изображением."
	ReasonTooSmall      = "Изображение слишком маленькое."
	ReasonFileTooLarge  = "Файл слишком большой."
	ReasonBadAspect     = "Неверное соотношение сторон области."
	ReasonBoxTooSmall   = "Область слишком маленькая."
	ReasonBoxOutOfImage = "Область выходит за границы изображения."
	ReasonPhotoReplaced = "Фотография была заменена, обновите страницу."
)

// thumbnailNamespace scopes the name based ids of thumbnails
var thumbnailNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("photo-onboarding/thumbnail"))

// PhotoService handles profile photo uploads and crop commits
type PhotoService struct {
	storage     storage.Storage
	photoRepo   *repository.PhotoRepository
	prober      probe.Prober
	constraints validator.Constraints
	crop        config.CropConfig
	publisher   events.Publisher
	logger      *zap.Logger
}

// NewPhotoService creates a new photo service
func NewPhotoService(
	store storage.Storage,
	photoRepo *repository.PhotoRepository,
	prober probe.Prober,
	constraints validator.Constraints,
	crop config.CropConfig,
	publisher events.Publisher,
	logger *zap.Logger,
) *PhotoService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PhotoService{
		storage:     store,
		photoRepo:   photoRepo,
		prober:      prober,
		constraints: constraints,
		crop:        crop,
		publisher:   publisher,
		logger:      logger,
	}
}

// Upload validates and stores a new photo for the user, replacing the previous one.
// Rejected photos produce an unsuccessful response, not an error.
func (s *PhotoService) Upload(ctx context.Context, userID string, file model.File) (*model.UploadResponse, error) {
	file.ContentType = probe.DetectContentType(file.Content)
	file.Size = int64(len(file.Content))

	dims, err := s.prober.Dimensions(ctx, file)
	if err != nil {
		s.logger.Info("Rejected undecodable upload",
			zap.String("user_id", userID),
			zap.String("content_type", file.ContentType),
			zap.Error(err))
		reason := model.MsgImgDimensions
		if !strings.HasPrefix(file.ContentType, "image/") {
			reason = ReasonNotImage
		}
		return &model.UploadResponse{Reason: reason}, nil
	}

	if reasons := s.constraints.Reasons(file, dims); len(reasons) > 0 {
		s.logger.Info("Rejected upload",
			zap.String("user_id", userID),
			zap.Int("width", dims.Width),
			zap.Int("height", dims.Height),
			zap.Int64("size", file.Size),
			zap.Any("reasons", reasons))
		return &model.UploadResponse{Reason: rejectionMessage(reasons)}, nil
	}

	media, err := s.storage.Store(ctx, userID, file)
	if err != nil {
		s.logger.Error("Failed to store photo", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}
	media.Width = dims.Width
	media.Height = dims.Height

	previous, err := s.photoRepo.ReplacePhoto(ctx, *media)
	if err != nil {
		return nil, fmt.Errorf("failed to save photo record: %w", err)
	}
	if previous != nil {
		if err := s.storage.Delete(ctx, &previous.Media); err != nil {
			s.logger.Warn("Failed to delete replaced photo",
				zap.String("media_id", previous.Media.ID),
				zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:    events.PhotoUploaded,
		UserID:  userID,
		Payload: media,
	})

	s.logger.Info("Photo uploaded",
		zap.String("user_id", userID),
		zap.String("media_id", media.ID),
		zap.Int("width", media.Width),
		zap.Int("height", media.Height))

	return &model.UploadResponse{Success: true, URL: media.URL}, nil
}

// Crop records a crop box on the user's current photo. The thumbnail reference
// is derived from the photo and the box, so committing the same box again
// yields the same reference.
func (s *PhotoService) Crop(ctx context.Context, userID string, box model.CropBox) (*model.CommitResponse, error) {
	photo, err := s.photoRepo.Get(ctx, userID)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		return &model.CommitResponse{Reason: ReasonNoPhoto}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	if reason := s.checkBox(photo.Media, box); reason != "" {
		s.logger.Info("Rejected crop box",
			zap.String("user_id", userID),
			zap.String("box", box.String()),
			zap.String("reason", reason))
		return &model.CommitResponse{Reason: reason}, nil
	}

	thumbnail := s.thumbnailURL(photo.Media, box)
	updated, err := s.photoRepo.UpdateCrop(ctx, userID, photo.Media.ID, box, thumbnail)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		return &model.CommitResponse{Reason: ReasonPhotoReplaced}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save crop: %w", err)
	}

	s.publish(ctx, events.Event{
		Type:    events.PhotoCropped,
		UserID:  userID,
		Payload: updated.Asset(),
	})

	s.logger.Info("Photo cropped",
		zap.String("user_id", userID),
		zap.String("box", box.String()),
		zap.String("thumbnail", thumbnail))

	return &model.CommitResponse{Success: true, Thumbnail: thumbnail}, nil
}

// Current returns the client view of the user's photo
func (s *PhotoService) Current(ctx context.Context, userID string) (*model.PhotoAsset, error) {
	photo, err := s.photoRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return photo.Asset(), nil
}

func (s *PhotoService) checkBox(media model.MediaFile, box model.CropBox) string {
	switch {
	case box.Width <= 0 || box.Height <= 0:
		return ReasonBoxTooSmall
	// compared without adding to the origin so huge values cannot wrap
	case box.X < 0 || box.Y < 0 || box.X > media.Width-box.Width || box.Y > media.Height-box.Height:
		return ReasonBoxOutOfImage
	case box.Width*s.crop.AspectHeight != box.Height*s.crop.AspectWidth:
		return ReasonBadAspect
	case box.Width < s.crop.MinThumbWidth || box.Height < s.crop.MinThumbHeight:
		return ReasonBoxTooSmall
	}
	return ""
}

func (s *PhotoService) thumbnailURL(media model.MediaFile, box model.CropBox) string {
	id := uuid.NewSHA1(thumbnailNamespace, []byte(media.ID+"/"+box.String()))
	return s.storage.URL(media.UserID, "thumb_"+id.String()+".jpg")
}

// publish never fails the request; events are best effort
func (s *PhotoService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

func rejectionMessage(reasons []validator.Reason) string {
	seen := make(map[string]bool)
	var parts []string
	for _, r := range reasons {
		var msg string
		switch r {
		case validator.ReasonNotImage:
			msg = ReasonNotImage
		case validator.ReasonTooNarrow, validator.ReasonTooShort:
			msg = ReasonTooSmall
		case validator.ReasonFileTooLarge:
			msg = ReasonFileTooLarge
		default:
			msg = string(r)
		}
		if !seen[msg] {
			seen[msg] = true
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, " ")
}
