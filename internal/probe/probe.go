// Package probe decodes image headers locally to measure pixel dimensions.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/evanoberholster/imagemeta"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yourorg/photo-onboarding/internal/model"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Prober yields the decoded pixel dimensions of a file
type Prober interface {
	Dimensions(ctx context.Context, file model.File) (model.Dimensions, error)
}

// ImageProber decodes image headers without decoding pixel data
type ImageProber struct {
	logger *zap.Logger
}

// NewImageProber creates a new image prober
func NewImageProber(logger *zap.Logger) *ImageProber {
	return &ImageProber{logger: logger}
}

// Dimensions decodes the image header of file. Orientations 5-8 swap
// width and height so the result matches how the photo is displayed.
func (p *ImageProber) Dimensions(ctx context.Context, file model.File) (model.Dimensions, error) {
	if err := ctx.Err(); err != nil {
		return model.Dimensions{}, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Content))
	if err != nil {
		p.logger.Debug("failed to decode image header", zap.String("file", file.Name), zap.Error(err))
		return model.Dimensions{}, fmt.Errorf("failed to decode image %q: %w", file.Name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return model.Dimensions{}, fmt.Errorf("image %q has empty dimensions", file.Name)
	}

	dims := model.Dimensions{Width: cfg.Width, Height: cfg.Height}
	if format == "jpeg" && rotated(file.Content) {
		dims.Width, dims.Height = dims.Height, dims.Width
	}

	p.logger.Debug("decoded image dimensions",
		zap.String("file", file.Name),
		zap.String("format", format),
		zap.Int("width", dims.Width),
		zap.Int("height", dims.Height))

	return dims, nil
}

// rotated reports whether EXIF orientation turns the image by 90 or 270 degrees
func rotated(content []byte) bool {
	exifData, err := imagemeta.Decode(bytes.NewReader(content))
	if err != nil {
		return false
	}
	orientation := int(exifData.Orientation)
	return orientation >= 5 && orientation <= 8
}

// DetectContentType sniffs the MIME type of content
func DetectContentType(content []byte) string {
	return mimetype.Detect(content).String()
}

// ReadFile loads a file from disk. The content type is sniffed from its bytes.
func ReadFile(path string) (model.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return model.File{}, fmt.Errorf("failed to read file: %w", err)
	}
	return model.File{
		Name:        filepath.Base(path),
		ContentType: DetectContentType(content),
		Size:        int64(len(content)),
		Content:     content,
	}, nil
}

// FixedProber returns preconfigured dimensions keyed by file name
type FixedProber map[string]model.Dimensions

// Dimensions implements Prober
func (f FixedProber) Dimensions(ctx context.Context, file model.File) (model.Dimensions, error) {
	dims, ok := f[file.Name]
	if !ok {
		return model.Dimensions{}, fmt.Errorf("no dimensions for %q", file.Name)
	}
	return dims, nil
}
