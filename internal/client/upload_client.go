package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"go.uber.org/zap"
)

// UploadObserver follows the phases of an upload. UploadFinished is called
// on every exit path.
type UploadObserver interface {
	UploadStarted()
	ResponseReceived()
	UploadFinished()
}

type nopObserver struct{}

func (nopObserver) UploadStarted()    {}
func (nopObserver) ResponseReceived() {}
func (nopObserver) UploadFinished()   {}

// UploadClient sends picked photos to the upload endpoint
type UploadClient struct {
	baseClient
	prober probe.Prober
}

// NewUploadClient creates a new upload client. The prober re-measures the
// uploaded file after the server accepts it.
func NewUploadClient(opts Options, prober probe.Prober, logger *zap.Logger) (*UploadClient, error) {
	base, err := newBaseClient(opts, logger)
	if err != nil {
		return nil, err
	}
	return &UploadClient{baseClient: base, prober: prober}, nil
}

// Upload sends file and returns the resulting photo asset with client measured geometry
func (c *UploadClient) Upload(ctx context.Context, file model.File, obs UploadObserver) (*model.PhotoAsset, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	obs.UploadStarted()
	defer obs.UploadFinished()

	resp, err := c.send(ctx, file)
	if err != nil {
		return nil, err
	}
	obs.ResponseReceived()

	dims, err := c.prober.Dimensions(ctx, file)
	if err != nil {
		c.logger.Warn("failed to measure uploaded image", zap.String("file", file.Name), zap.Error(err))
		return nil, model.NewError(model.ImageDimensionsUnavailable, model.MsgImgDimensions, err)
	}

	asset := &model.PhotoAsset{
		URL:       resp.URL,
		Thumbnail: resp.Thumbnail,
		Width:     dims.Width,
		Height:    dims.Height,
	}

	c.logger.Info("photo uploaded",
		zap.String("user_id", c.userID),
		zap.String("url", asset.URL),
		zap.Int("width", asset.Width),
		zap.Int("height", asset.Height))

	return asset, nil
}

func (c *UploadClient) send(ctx context.Context, file model.File) (*model.UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename="%s"`, escapeQuotes(file.Name)))
	header.Set("Content-Type", file.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.WriteField("user_id", c.userID); err != nil {
		return nil, fmt.Errorf("failed to write user_id field: %w", err)
	}
	writer.Close()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Error("upload timed out", zap.Duration("timeout", c.timeout))
			return nil, model.NewError(model.RequestTimeout, model.MsgRequestTimeout, err)
		}
		c.logger.Error("failed to send upload request", zap.Error(err))
		e := model.NewError(model.UploadFailed, model.MsgUploadError+err.Error(), err)
		e.Subtype = model.SubtypeOther
		return nil, e
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		c.logger.Error("upload endpoint returned error", zap.Int("status", resp.StatusCode))
		return nil, uploadStatusError(resp)
	}

	var uploadResponse model.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResponse); err != nil {
		c.logger.Error("failed to decode upload response", zap.Error(err))
		return nil, model.NewError(model.UnknownError, model.MsgUnknownError, err)
	}
	if !uploadResponse.Success {
		c.logger.Warn("upload rejected by server", zap.String("reason", uploadResponse.Reason))
		return nil, model.NewError(model.UnknownError, model.MsgUnknownError, nil)
	}

	return &uploadResponse, nil
}

// uploadStatusError classifies a non-2xx upload response
func uploadStatusError(resp *http.Response) *model.Error {
	e := &model.Error{Kind: model.UploadFailed, Status: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusForbidden:
		e.Subtype = model.SubtypeForbidden
		e.Detail = model.MsgUploadError + model.MsgBadRequest
	case http.StatusInternalServerError:
		e.Subtype = model.SubtypeServerError
		e.Detail = model.MsgUploadError + model.MsgUnknownError
	default:
		e.Subtype = model.SubtypeOther
		text := readErrorBody(resp)
		if text == "" {
			text = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		e.Detail = model.MsgUploadError + text
	}
	return e
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
