package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourorg/photo-onboarding/internal/model"
	"go.uber.org/zap"
)

// CommitClient persists crop boxes on the same resource as uploads
type CommitClient struct {
	baseClient
}

// NewCommitClient creates a new commit client
func NewCommitClient(opts Options, logger *zap.Logger) (*CommitClient, error) {
	base, err := newBaseClient(opts, logger)
	if err != nil {
		return nil, err
	}
	return &CommitClient{baseClient: base}, nil
}

// Commit posts box for asset and returns a copy of asset carrying the new
// thumbnail reference and crop box
func (c *CommitClient) Commit(ctx context.Context, asset *model.PhotoAsset, box model.CropBox) (*model.PhotoAsset, error) {
	form := url.Values{}
	form.Set("crop_data", "true")
	form.Set("user_id", c.userID)
	form.Set("x", strconv.Itoa(box.X))
	form.Set("y", strconv.Itoa(box.Y))
	form.Set("width", strconv.Itoa(box.Width))
	form.Set("height", strconv.Itoa(box.Height))

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Error("crop commit timed out", zap.Duration("timeout", c.timeout))
			return nil, model.NewError(model.RequestTimeout, model.MsgRequestTimeout, err)
		}
		c.logger.Error("failed to send crop commit", zap.Error(err))
		return nil, model.NewError(model.CommitFailed, model.MsgThumbDoneFail+"error", err)
	}
	defer resp.Body.Close()

	var commitResponse model.CommitResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&commitResponse)

	if !isSuccess(resp.StatusCode) {
		c.logger.Error("commit endpoint returned error", zap.Int("status", resp.StatusCode))
		e := model.NewError(model.CommitFailed, model.MsgThumbDoneFail+http.StatusText(resp.StatusCode), nil)
		if decodeErr == nil && commitResponse.Reason != "" {
			e.Detail = commitResponse.Reason
		}
		e.Status = resp.StatusCode
		return nil, e
	}
	if decodeErr != nil {
		c.logger.Error("failed to decode commit response", zap.Error(decodeErr))
		return nil, model.NewError(model.CommitFailed, model.MsgUnknownError, decodeErr)
	}
	if !commitResponse.Success {
		detail := commitResponse.Reason
		if detail == "" {
			detail = model.MsgUnknownError
		}
		c.logger.Warn("crop rejected by server", zap.String("reason", commitResponse.Reason))
		return nil, model.NewError(model.CommitFailed, detail, nil)
	}

	updated := asset.Clone()
	if updated == nil {
		updated = &model.PhotoAsset{}
	}
	updated.Thumbnail = commitResponse.Thumbnail
	committed := box
	updated.CropBox = &committed

	c.logger.Info("crop committed",
		zap.String("user_id", c.userID),
		zap.String("box", box.String()),
		zap.String("thumbnail", updated.Thumbnail))

	return updated, nil
}
