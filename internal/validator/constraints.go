// Package validator gates candidate images against upload constraints.
package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
)

// Constraints are the immutable upload limits
type Constraints struct {
	MinWidth         int   `validate:"gt=0"`
	MinHeight        int   `validate:"gt=0"`
	MaxFileSizeBytes int64 `validate:"gt=0"`
}

// NewConstraints builds validated constraints
func NewConstraints(minWidth, minHeight int, maxFileSizeBytes int64) (Constraints, error) {
	c := Constraints{MinWidth: minWidth, MinHeight: minHeight, MaxFileSizeBytes: maxFileSizeBytes}
	if err := validator.New().Struct(c); err != nil {
		return Constraints{}, fmt.Errorf("invalid upload constraints: %w", err)
	}
	return c, nil
}

// Reason names a failed constraint check
type Reason string

const (
	ReasonNotImage     Reason = "not_image"
	ReasonTooNarrow    Reason = "too_narrow"
	ReasonTooShort     Reason = "too_short"
	ReasonFileTooLarge Reason = "file_too_large"
)

// Reasons evaluates every check and returns all failures
func (c Constraints) Reasons(file model.File, dims model.Dimensions) []Reason {
	var reasons []Reason
	if !isImage(file.ContentType) {
		reasons = append(reasons, ReasonNotImage)
	}
	if dims.Width < c.MinWidth {
		reasons = append(reasons, ReasonTooNarrow)
	}
	if dims.Height < c.MinHeight {
		reasons = append(reasons, ReasonTooShort)
	}
	if file.Size > c.MaxFileSizeBytes {
		reasons = append(reasons, ReasonFileTooLarge)
	}
	return reasons
}

// Validate accepts a file iff every constraint holds
func (c Constraints) Validate(file model.File, dims model.Dimensions) bool {
	return len(c.Reasons(file, dims)) == 0
}

// Selection is the outcome of filtering a batch of picked files
type Selection struct {
	Accepted     *model.File
	Dimensions   model.Dimensions
	Rejected     int
	DecodeFailed int
}

// FirstAccepted probes files in order and returns the first that passes.
// Files after the accepted one are not examined.
func (c Constraints) FirstAccepted(ctx context.Context, prober probe.Prober, files []model.File) (Selection, error) {
	var sel Selection
	for i := range files {
		if err := ctx.Err(); err != nil {
			return sel, err
		}
		// the type is checked before decoding, a non-image is a rejection
		if !isImage(files[i].ContentType) {
			sel.Rejected++
			continue
		}
		dims, err := prober.Dimensions(ctx, files[i])
		if err != nil {
			sel.DecodeFailed++
			continue
		}
		if !c.Validate(files[i], dims) {
			sel.Rejected++
			continue
		}
		f := files[i]
		sel.Accepted = &f
		sel.Dimensions = dims
		return sel, nil
	}
	return sel, nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
