package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"go.uber.org/zap"
)

type phaseRecorder struct {
	phases []string
}

func (r *phaseRecorder) UploadStarted()    { r.phases = append(r.phases, "started") }
func (r *phaseRecorder) ResponseReceived() { r.phases = append(r.phases, "response") }
func (r *phaseRecorder) UploadFinished()   { r.phases = append(r.phases, "finished") }

func testFile() model.File {
	return model.File{Name: "me.jpg", ContentType: "image/jpeg", Size: 4, Content: []byte("jpeg")}
}

func newUploadClient(t *testing.T, url string, prober probe.Prober, timeout time.Duration) *UploadClient {
	t.Helper()
	c, err := NewUploadClient(Options{
		BaseURL:        url,
		Path:           "/profile-update-image/",
		UserID:         "42",
		CSRFToken:      "token",
		RequestTimeout: timeout,
	}, prober, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestUploadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile-update-image/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get(CSRFHeader) != "token" {
			t.Errorf("csrf header = %q", r.Header.Get(CSRFHeader))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			return
		}
		if r.FormValue("user_id") != "42" {
			t.Errorf("user_id = %q", r.FormValue("user_id"))
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		if string(content) != "jpeg" || header.Filename != "me.jpg" {
			t.Errorf("file %q content %q", header.Filename, content)
		}
		if header.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("part content type = %q", header.Header.Get("Content-Type"))
		}
		json.NewEncoder(w).Encode(model.UploadResponse{Success: true, URL: "/media/me.jpg", Thumbnail: "/media/me_thumb.jpg"})
	}))
	defer srv.Close()

	prober := probe.FixedProber{"me.jpg": {Width: 300, Height: 400}}
	c := newUploadClient(t, srv.URL, prober, time.Second)
	rec := &phaseRecorder{}

	asset, err := c.Upload(context.Background(), testFile(), rec)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	want := model.PhotoAsset{URL: "/media/me.jpg", Thumbnail: "/media/me_thumb.jpg", Width: 300, Height: 400}
	if *asset != want {
		t.Errorf("asset = %+v, want %+v", *asset, want)
	}
	if strings.Join(rec.phases, ",") != "started,response,finished" {
		t.Errorf("phases = %v", rec.phases)
	}
}

func TestUploadStatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantSubtype model.UploadSubtype
		wantDetail  string
	}{
		{"forbidden", http.StatusForbidden, "csrf", model.SubtypeForbidden, model.MsgUploadError + model.MsgBadRequest},
		{"server error", http.StatusInternalServerError, "trace", model.SubtypeServerError, model.MsgUploadError + model.MsgUnknownError},
		{"other with body", http.StatusRequestEntityTooLarge, "Файл слишком большой", model.SubtypeOther, model.MsgUploadError + "Файл слишком большой"},
		{"other without body", http.StatusBadGateway, "", model.SubtypeOther, model.MsgUploadError + "502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			rec := &phaseRecorder{}
			c := newUploadClient(t, srv.URL, probe.FixedProber{}, time.Second)
			_, err := c.Upload(context.Background(), testFile(), rec)

			var e *model.Error
			if !errors.As(err, &e) {
				t.Fatalf("Upload() error = %v, want *model.Error", err)
			}
			if e.Kind != model.UploadFailed || e.Subtype != tt.wantSubtype {
				t.Errorf("kind = %v subtype = %v, want UploadFailed %v", e.Kind, e.Subtype, tt.wantSubtype)
			}
			if e.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", e.Detail, tt.wantDetail)
			}
			if e.Status != tt.status {
				t.Errorf("status = %d, want %d", e.Status, tt.status)
			}
			if rec.phases[len(rec.phases)-1] != "finished" {
				t.Errorf("loading state not cleared: %v", rec.phases)
			}
		})
	}
}

func TestUploadLogicalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.UploadResponse{Success: false, Reason: "nope"})
	}))
	defer srv.Close()

	c := newUploadClient(t, srv.URL, probe.FixedProber{"me.jpg": {Width: 300, Height: 400}}, time.Second)
	_, err := c.Upload(context.Background(), testFile(), nil)
	if model.KindOf(err) != model.UnknownError {
		t.Errorf("Upload() error = %v, want UnknownError", err)
	}
}

func TestUploadDimensionsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.UploadResponse{Success: true, URL: "/media/me.jpg"})
	}))
	defer srv.Close()

	c := newUploadClient(t, srv.URL, probe.FixedProber{}, time.Second)
	_, err := c.Upload(context.Background(), testFile(), nil)
	if model.KindOf(err) != model.ImageDimensionsUnavailable {
		t.Errorf("Upload() error = %v, want ImageDimensionsUnavailable", err)
	}
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newUploadClient(t, srv.URL, probe.FixedProber{}, 50*time.Millisecond)
	_, err := c.Upload(context.Background(), testFile(), nil)
	if model.KindOf(err) != model.RequestTimeout {
		t.Errorf("Upload() error = %v, want RequestTimeout", err)
	}
}

func newCommitClient(t *testing.T, url string) *CommitClient {
	t.Helper()
	c, err := NewCommitClient(Options{
		BaseURL:        url,
		Path:           "/profile-update-image/",
		UserID:         "42",
		CSRFToken:      "token",
		RequestTimeout: time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCommitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get(CSRFHeader) != "token" {
			t.Errorf("csrf header = %q", r.Header.Get(CSRFHeader))
		}
		r.ParseForm()
		if r.PostForm.Get("crop_data") != "true" {
			t.Errorf("crop_data = %q", r.PostForm.Get("crop_data"))
		}
		got := r.PostForm.Get("x") + "," + r.PostForm.Get("y") + "," + r.PostForm.Get("width") + "," + r.PostForm.Get("height")
		if got != "10,20,170,238" {
			t.Errorf("box = %s", got)
		}
		json.NewEncoder(w).Encode(model.CommitResponse{Success: true, Thumbnail: "x.jpg"})
	}))
	defer srv.Close()

	asset := &model.PhotoAsset{URL: "/media/me.jpg", Width: 300, Height: 400}
	box := model.CropBox{X: 10, Y: 20, Width: 170, Height: 238}

	updated, err := newCommitClient(t, srv.URL).Commit(context.Background(), asset, box)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if updated.Thumbnail != "x.jpg" {
		t.Errorf("thumbnail = %q, want x.jpg", updated.Thumbnail)
	}
	if updated.CropBox == nil || *updated.CropBox != box {
		t.Errorf("crop box = %+v, want %+v", updated.CropBox, box)
	}
	if asset.Thumbnail != "" || asset.CropBox != nil {
		t.Error("Commit() mutated the input asset")
	}
}

func TestCommitFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{"reason", http.StatusOK, `{"success":false,"reason":"Слишком маленькая область"}`, "Слишком маленькая область"},
		{"no reason", http.StatusOK, `{"success":false}`, model.MsgUnknownError},
		{"http error", http.StatusForbidden, `forbidden`, model.MsgThumbDoneFail + "Forbidden"},
		{"http error with reason", http.StatusBadRequest, `{"success":false,"reason":"bad box"}`, "bad box"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newCommitClient(t, srv.URL).Commit(context.Background(), &model.PhotoAsset{}, model.CropBox{Width: 170, Height: 238})
			var e *model.Error
			if !errors.As(err, &e) || e.Kind != model.CommitFailed {
				t.Fatalf("Commit() error = %v, want CommitFailed", err)
			}
			if e.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", e.Detail, tt.wantDetail)
			}
		})
	}
}

func TestPreviewRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.PostForm.Get("text") {
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "pending":
			json.NewEncoder(w).Encode(previewResponse{Status: "ERROR"})
		default:
			json.NewEncoder(w).Encode(previewResponse{Status: "OK", Text: "<p>" + r.PostForm.Get("text") + "</p>"})
		}
	}))
	defer srv.Close()

	c, err := NewPreviewClient(Options{BaseURL: srv.URL, Path: "/tools/markdown/preview/"}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if html, err := c.Render(ctx, "hello"); err != nil || html != "<p>hello</p>" {
		t.Errorf("Render() = %q, %v", html, err)
	}
	if html, err := c.Render(ctx, ""); err != nil || html != "" {
		t.Errorf("Render(empty) = %q, %v", html, err)
	}
	if html, err := c.Render(ctx, "pending"); err != nil || html != "" {
		t.Errorf("Render(pending) = %q, %v", html, err)
	}
	if _, err := c.Render(ctx, "forbidden"); !errors.Is(err, ErrPreviewForbidden) {
		t.Errorf("Render(forbidden) error = %v", err)
	}
	if _, err := c.Render(ctx, "broken"); !errors.Is(err, ErrPreviewUnavailable) {
		t.Errorf("Render(broken) error = %v", err)
	}
}
