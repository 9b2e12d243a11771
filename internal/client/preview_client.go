package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Preview error texts shown by the editor
const (
	MsgPreviewForbidden = "Action forbidden"
	MsgPreviewUnknown   = "Unknown error. Please, save results of your work first, then try to reload page."
)

// ErrPreviewForbidden is returned when the preview endpoint answers 403
var ErrPreviewForbidden = errors.New(MsgPreviewForbidden)

// ErrPreviewUnavailable is returned for every other preview failure
var ErrPreviewUnavailable = errors.New(MsgPreviewUnknown)

type previewResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
}

// PreviewClient renders editor markdown through the server
type PreviewClient struct {
	baseClient
}

// NewPreviewClient creates a new markdown preview client
func NewPreviewClient(opts Options, logger *zap.Logger) (*PreviewClient, error) {
	base, err := newBaseClient(opts, logger)
	if err != nil {
		return nil, err
	}
	return &PreviewClient{baseClient: base}, nil
}

// Render returns server rendered HTML for text. Empty text is not sent.
// A response whose status is not "OK" leaves the preview unchanged and
// returns an empty string with a nil error.
func (c *PreviewClient) Render(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	form := url.Values{}
	form.Set("text", text)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("failed to send preview request", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrPreviewUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("preview forbidden, csrf token may be stale")
		return "", ErrPreviewForbidden
	}
	if !isSuccess(resp.StatusCode) {
		c.logger.Error("preview endpoint returned error", zap.Int("status", resp.StatusCode))
		return "", ErrPreviewUnavailable
	}

	var preview previewResponse
	if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
		c.logger.Error("failed to decode preview response", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrPreviewUnavailable, err)
	}
	if preview.Status != "OK" {
		return "", nil
	}
	return preview.Text, nil
}
