// Package crop binds a fixed-ratio crop box to an uploaded photo.
//
// The box lives in source image pixels and is always aspectWidth*k by
// aspectHeight*k for an integer k, so the ratio holds exactly. Pointer
// interactions arrive in display pixels and are clamped, never rejected.
package crop

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/photo-onboarding/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrInvalidAsset is returned when the asset has no usable geometry
	ErrInvalidAsset = errors.New("photo has no dimensions")
	// ErrImageTooSmall is returned when the minimum crop box does not fit the image
	ErrImageTooSmall = errors.New("image is smaller than the minimum crop box")
)

// Options hold the crop geometry constraints
type Options struct {
	AspectWidth        int
	AspectHeight       int
	MinWidth           int
	MinHeight          int
	Padding            int
	MinContainerWidth  int
	MinContainerHeight int
}

// DefaultOptions match the profile photo thumbnail: 5:7, at least 170x238
func DefaultOptions() Options {
	return Options{
		AspectWidth:        5,
		AspectHeight:       7,
		MinWidth:           170,
		MinHeight:          238,
		Padding:            40,
		MinContainerWidth:  250,
		MinContainerHeight: 250,
	}
}

// Handle is a corner of the crop box grabbed by the pointer
type Handle int

const (
	TopLeft Handle = iota
	TopRight
	BottomLeft
	BottomRight
)

func (h Handle) String() string {
	switch h {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return fmt.Sprintf("Handle(%d)", int(h))
	}
}

// ParseHandle parses a handle name such as "bottom-right"
func ParseHandle(s string) (Handle, error) {
	for _, h := range []Handle{TopLeft, TopRight, BottomLeft, BottomRight} {
		if h.String() == strings.ToLower(s) {
			return h, nil
		}
	}
	return 0, fmt.Errorf("unknown crop handle %q", s)
}

// Rect is a rectangle in display pixels
type Rect struct {
	X, Y, Width, Height float64
}

// Session is an active crop interaction on one photo
type Session struct {
	mu sync.Mutex

	opts     Options
	width    int
	height   int
	imageURL string

	container  int
	containerH int
	displayW   int
	displayH   int
	scale      float64

	minK int
	k    int
	x    int
	y    int

	disabled bool
	released bool

	logger *zap.Logger
}

// Begin starts a session on asset. The initial box is the largest box that
// fits, centered; a saved crop box on the asset is applied on top.
func Begin(asset *model.PhotoAsset, containerWidth int, opts Options, now time.Time, logger *zap.Logger) (*Session, error) {
	if asset == nil || asset.Width <= 0 || asset.Height <= 0 {
		return nil, ErrInvalidAsset
	}
	if opts.AspectWidth <= 0 || opts.AspectHeight <= 0 {
		return nil, fmt.Errorf("invalid aspect ratio %d:%d", opts.AspectWidth, opts.AspectHeight)
	}

	s := &Session{
		opts:     opts,
		width:    asset.Width,
		height:   asset.Height,
		imageURL: cacheBusted(asset.URL, now),
		logger:   logger,
	}

	s.minK = max(ceilDiv(opts.MinWidth, opts.AspectWidth), ceilDiv(opts.MinHeight, opts.AspectHeight), 1)
	maxK := s.maxK()
	if maxK < s.minK {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, asset.Width, asset.Height)
	}

	s.k = maxK
	s.x = (s.width - s.boxWidth()) / 2
	s.y = (s.height - s.boxHeight()) / 2
	s.layout(containerWidth)

	if asset.CropBox != nil {
		s.seed(*asset.CropBox)
	}

	logger.Debug("crop session started",
		zap.String("url", s.imageURL),
		zap.Int("width", s.width),
		zap.Int("height", s.height),
		zap.Float64("scale", s.scale),
		zap.String("box", s.box().String()))

	return s, nil
}

// ImageURL is the cache-busted address of the photo being cropped
func (s *Session) ImageURL() string {
	return s.imageURL
}

// CurrentBox returns the crop box in source image pixels
func (s *Session) CurrentBox() model.CropBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.box()
}

// Seed applies a previously known box, clamped to the constraints
func (s *Session) Seed(box model.CropBox) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.seed(box)
	return true
}

// Move drags the box by dx, dy display pixels, clamped to the image
func (s *Session) Move(dx, dy float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.interactive() {
		return false
	}
	s.x = clamp(s.x+s.toSource(dx), 0, s.width-s.boxWidth())
	s.y = clamp(s.y+s.toSource(dy), 0, s.height-s.boxHeight())
	return true
}

// Resize drags handle by dx, dy display pixels. The opposite corner stays
// fixed; the dominant axis sets the new size, clamped to the minimum box and
// to the image edges.
func (s *Session) Resize(handle Handle, dx, dy float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.interactive() {
		return false
	}

	sx, sy := s.toSourceF(dx), s.toSourceF(dy)
	// growth along each axis: positive means the box gets bigger
	var gw, gh float64
	switch handle {
	case TopLeft:
		gw, gh = -sx, -sy
	case TopRight:
		gw, gh = sx, -sy
	case BottomLeft:
		gw, gh = -sx, sy
	case BottomRight:
		gw, gh = sx, sy
	default:
		return false
	}

	kw := (float64(s.boxWidth()) + gw) / float64(s.opts.AspectWidth)
	kh := (float64(s.boxHeight()) + gh) / float64(s.opts.AspectHeight)
	target := kw
	if math.Abs(kh-float64(s.k)) > math.Abs(kw-float64(s.k)) {
		target = kh
	}

	// anchor is the fixed corner
	right, bottom := s.x+s.boxWidth(), s.y+s.boxHeight()
	var spaceW, spaceH int
	switch handle {
	case TopLeft:
		spaceW, spaceH = right, bottom
	case TopRight:
		spaceW, spaceH = s.width-s.x, bottom
	case BottomLeft:
		spaceW, spaceH = right, s.height-s.y
	case BottomRight:
		spaceW, spaceH = s.width-s.x, s.height-s.y
	}
	maxK := min(spaceW/s.opts.AspectWidth, spaceH/s.opts.AspectHeight)

	s.k = clamp(int(math.Round(target)), s.minK, maxK)

	switch handle {
	case TopLeft:
		s.x, s.y = right-s.boxWidth(), bottom-s.boxHeight()
	case TopRight:
		s.y = bottom - s.boxHeight()
	case BottomLeft:
		s.x = right - s.boxWidth()
	}
	return true
}

// SetContainerWidth recomputes the display scale for a resized container.
// The box in source pixels is unchanged.
func (s *Session) SetContainerWidth(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout(width)
}

// DisplaySize returns the size of the rendered photo in display pixels
func (s *Session) DisplaySize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayW, s.displayH
}

// ContainerSize returns the dialog body size. A short photo is letterboxed
// inside the minimum container height.
func (s *Session) ContainerSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayW, s.containerH
}

// Scale returns display pixels per source pixel
func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// DisplayBox returns the crop box in display pixels
func (s *Session) DisplayBox() Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Rect{
		X:      float64(s.x) * s.scale,
		Y:      float64(s.y) * s.scale,
		Width:  float64(s.boxWidth()) * s.scale,
		Height: float64(s.boxHeight()) * s.scale,
	}
}

// Disable blocks pointer interaction. The box is kept for resumption.
func (s *Session) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// Enable allows pointer interaction again
func (s *Session) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = false
}

// Disabled reports whether interaction is blocked
func (s *Session) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled || s.released
}

// Release ends the session; later interactions are ignored
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

func (s *Session) interactive() bool {
	return !s.disabled && !s.released
}

func (s *Session) seed(box model.CropBox) {
	aw, ah := float64(s.opts.AspectWidth), float64(s.opts.AspectHeight)
	k := int(math.Round((float64(box.Width)/aw + float64(box.Height)/ah) / 2))
	s.k = clamp(k, s.minK, s.maxK())
	s.x = clamp(box.X, 0, s.width-s.boxWidth())
	s.y = clamp(box.Y, 0, s.height-s.boxHeight())
}

func (s *Session) layout(containerWidth int) {
	s.container = containerWidth
	w := containerWidth - s.opts.Padding
	if w < s.opts.MinContainerWidth {
		w = s.opts.MinContainerWidth
	}
	if w <= 0 {
		w = s.width
	}
	s.displayW = w
	s.displayH = int(math.Round(float64(w) / float64(s.width) * float64(s.height)))
	s.containerH = max(s.displayH, s.opts.MinContainerHeight)
	s.scale = float64(w) / float64(s.width)
}

func (s *Session) box() model.CropBox {
	return model.CropBox{X: s.x, Y: s.y, Width: s.boxWidth(), Height: s.boxHeight()}
}

func (s *Session) boxWidth() int  { return s.k * s.opts.AspectWidth }
func (s *Session) boxHeight() int { return s.k * s.opts.AspectHeight }

func (s *Session) maxK() int {
	return min(s.width/s.opts.AspectWidth, s.height/s.opts.AspectHeight)
}

func (s *Session) toSourceF(d float64) float64 {
	return d / s.scale
}

func (s *Session) toSource(d float64) int {
	return int(math.Round(d / s.scale))
}

func cacheBusted(rawURL string, now time.Time) string {
	if rawURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%d", rawURL, sep, now.Unix())
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
