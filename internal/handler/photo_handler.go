package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/repository"
	"github.com/yourorg/photo-onboarding/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PhotoHandler serves the profile photo endpoint used by the widget
type PhotoHandler struct {
	photoService *service.PhotoService
	maxFileSize  int64
	logger       *zap.Logger
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *service.PhotoService, maxFileSize int64, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{
		photoService: photoService,
		maxFileSize:  maxFileSize,
		logger:       logger,
	}
}

// UpdateImage handles both photo uploads and crop commits. A form field
// crop_data=true marks a commit.
// POST /profile-update-image/
func (h *PhotoHandler) UpdateImage(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, model.CommitResponse{Reason: model.MsgBadRequest})
		return
	}

	if c.PostForm("crop_data") == "true" {
		h.commitCrop(c, userID)
		return
	}
	h.uploadPhoto(c, userID)
}

func (h *PhotoHandler) uploadPhoto(c *gin.Context, userID string) {
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		h.logger.Warn("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.UploadResponse{Reason: model.MsgBadRequest})
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		c.JSON(http.StatusOK, model.UploadResponse{Reason: service.ReasonFileTooLarge})
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.logger.Error("Failed to read file content", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.UploadResponse{Reason: model.MsgUnknownError})
		return
	}

	resp, err := h.photoService.Upload(c.Request.Context(), userID, model.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     content,
	})
	if err != nil {
		h.logger.Error("Failed to upload photo", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.UploadResponse{Reason: model.MsgUnknownError})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PhotoHandler) commitCrop(c *gin.Context, userID string) {
	var req model.CommitRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Invalid crop request", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadRequest, model.CommitResponse{Reason: model.MsgBadRequest})
		return
	}

	resp, err := h.photoService.Crop(c.Request.Context(), userID, req.CropBox)
	if err != nil {
		h.logger.Error("Failed to commit crop", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.CommitResponse{Reason: model.MsgUnknownError})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPhoto returns the host configuration of a user's current photo
// GET /users/:id/photo
func (h *PhotoHandler) GetPhoto(c *gin.Context) {
	userID := c.Param("id")

	asset, err := h.photoService.Current(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrPhotoNotFound) {
		c.JSON(http.StatusOK, model.HostConfig{UserID: userID})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get photo", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get photo"})
		return
	}

	c.JSON(http.StatusOK, model.HostConfig{UserID: userID, Photo: asset})
}

// Health reports that the server is up
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
