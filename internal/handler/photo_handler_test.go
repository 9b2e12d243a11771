package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/photo-onboarding/internal/client"
	"github.com/yourorg/photo-onboarding/internal/config"
	"github.com/yourorg/photo-onboarding/internal/middleware"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/repository"
	"github.com/yourorg/photo-onboarding/internal/service"
	"github.com/yourorg/photo-onboarding/internal/storage"
	"github.com/yourorg/photo-onboarding/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, csrfEnabled bool) (*gin.Engine, *middleware.CSRF) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Storage.BasePath = t.TempDir()
	cfg.CSRF.Enabled = csrfEnabled
	logger := zap.NewNop()

	store, err := storage.NewLocalStorage(&cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	constraints, err := validator.NewConstraints(cfg.Upload.MinWidth, cfg.Upload.MinHeight, cfg.Upload.MaxFileSize)
	if err != nil {
		t.Fatal(err)
	}
	photoService := service.NewPhotoService(store, repository.NewPhotoRepository(logger),
		probe.NewImageProber(logger), constraints, cfg.Crop, nil, logger)
	photoHandler := NewPhotoHandler(photoService, cfg.Upload.MaxFileSize, logger)
	csrf := middleware.NewCSRF(cfg.CSRF, logger)

	router := gin.New()
	router.GET("/health", Health)
	router.GET("/csrf", csrf.IssueHandler)
	router.GET("/users/:id/photo", photoHandler.GetPhoto)
	router.POST("/profile-update-image/", csrf.Middleware(), photoHandler.UpdateImage)
	return router, csrf
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, userID string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("user_id", userID); err != nil {
		t.Fatal(err)
	}
	part, err := mw.CreateFormFile("photo", "me.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/profile-update-image/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func commitRequest(userID string, box model.CropBox) *http.Request {
	form := url.Values{
		"crop_data": {"true"},
		"user_id":   {userID},
		"x":         {strconv.Itoa(box.X)},
		"y":         {strconv.Itoa(box.Y)},
		"width":     {strconv.Itoa(box.Width)},
		"height":    {strconv.Itoa(box.Height)},
	}
	req := httptest.NewRequest(http.MethodPost, "/profile-update-image/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestUploadAndCommit(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "42", pngBytes(t, 300, 400)))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d body = %s", w.Code, w.Body.String())
	}
	var upload model.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &upload); err != nil {
		t.Fatal(err)
	}
	if !upload.Success || upload.URL == "" {
		t.Fatalf("upload = %+v", upload)
	}

	box := model.CropBox{X: 7, Y: 0, Width: 285, Height: 399}
	var thumbs []string
	for i := 0; i < 2; i++ {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, commitRequest("42", box))
		var commit model.CommitResponse
		if err := json.Unmarshal(w.Body.Bytes(), &commit); err != nil {
			t.Fatal(err)
		}
		if w.Code != http.StatusOK || !commit.Success {
			t.Fatalf("commit %d: status = %d body = %s", i, w.Code, w.Body.String())
		}
		thumbs = append(thumbs, commit.Thumbnail)
	}
	if thumbs[0] != thumbs[1] {
		t.Errorf("recommit changed thumbnail: %v", thumbs)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42/photo", nil))
	var host model.HostConfig
	if err := json.Unmarshal(w.Body.Bytes(), &host); err != nil {
		t.Fatal(err)
	}
	if host.Photo == nil || host.Photo.Thumbnail != thumbs[0] || host.Photo.CropBox == nil || *host.Photo.CropBox != box {
		t.Errorf("host config = %+v", host)
	}
}

func TestUpdateImageBadRequests(t *testing.T) {
	router, _ := newTestRouter(t, false)

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"missing user", func() *http.Request { return commitRequest("", model.CropBox{Width: 170, Height: 238}) }},
		{"missing file", func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/profile-update-image/", strings.NewReader("user_id=42"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req
		}},
		{"zero width box", func() *http.Request { return commitRequest("42", model.CropBox{Width: 0, Height: 238}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.req())
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestUploadRejectedPhoto(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "42", pngBytes(t, 100, 100)))

	var upload model.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &upload); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || upload.Success || upload.Reason != service.ReasonTooSmall {
		t.Errorf("status = %d upload = %+v", w.Code, upload)
	}
}

func TestGetPhotoWithoutUpload(t *testing.T) {
	router, _ := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/9/photo", nil))

	var host model.HostConfig
	if err := json.Unmarshal(w.Body.Bytes(), &host); err != nil {
		t.Fatal(err)
	}
	if host.UserID != "9" || host.Photo != nil {
		t.Errorf("host config = %+v", host)
	}
}

// TestClientsAgainstServer drives the widget clients against the handler
func TestClientsAgainstServer(t *testing.T) {
	router, _ := newTestRouter(t, true)
	srv := httptest.NewServer(router)
	defer srv.Close()
	ctx := context.Background()

	opts := client.Options{
		BaseURL:        srv.URL,
		Path:           "/profile-update-image/",
		UserID:         "42",
		RequestTimeout: 5 * time.Second,
	}

	uploader, err := client.NewUploadClient(opts, probe.NewImageProber(zap.NewNop()), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	file := model.File{Name: "me.png", ContentType: "image/png", Content: pngBytes(t, 300, 400)}
	file.Size = int64(len(file.Content))

	_, err = uploader.Upload(ctx, file, nil)
	var e *model.Error
	if !errors.As(err, &e) || e.Subtype != model.SubtypeForbidden || e.Detail != model.MsgUploadError+model.MsgBadRequest {
		t.Fatalf("Upload() without token error = %v, want forbidden", err)
	}

	tokenOpts := opts
	tokenOpts.Path = "/csrf"
	token, err := client.FetchCSRFToken(ctx, tokenOpts)
	if err != nil {
		t.Fatalf("FetchCSRFToken() error = %v", err)
	}
	opts.CSRFToken = token

	uploader, err = client.NewUploadClient(opts, probe.NewImageProber(zap.NewNop()), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	asset, err := uploader.Upload(ctx, file, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if asset.Width != 300 || asset.Height != 400 {
		t.Errorf("asset = %+v", asset)
	}

	committer, err := client.NewCommitClient(opts, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	box := model.CropBox{X: 0, Y: 0, Width: 250, Height: 350}
	committed, err := committer.Commit(ctx, asset, box)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := committer.Commit(ctx, committed, box)
	if err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}
	if committed.Thumbnail == "" || committed.Thumbnail != again.Thumbnail {
		t.Errorf("thumbnails = %q, %q", committed.Thumbnail, again.Thumbnail)
	}

	_, err = committer.Commit(ctx, asset, model.CropBox{Width: 200, Height: 200})
	if !errors.As(err, &e) || e.Kind != model.CommitFailed || e.Detail != service.ReasonBadAspect {
		t.Errorf("Commit() with bad box error = %v", err)
	}
}
