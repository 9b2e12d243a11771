// Package workflow sequences preload, validation, upload, crop and commit
// for the profile photo widget.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/photo-onboarding/internal/client"
	"github.com/yourorg/photo-onboarding/internal/crop"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/notify"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/validator"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a trigger arrives while its operation is in flight
	ErrBusy = errors.New("operation already in progress")
	// ErrInvalidState is returned when a trigger is not valid in the current state
	ErrInvalidState = errors.New("action not allowed in current state")
	// ErrClosed is returned after the widget has been torn down
	ErrClosed = errors.New("widget closed")
	// ErrNoUser is returned when the host page supplied no user
	ErrNoUser = errors.New("host config has no user_id")
)

// Preloader gates activation on external resources
type Preloader interface {
	Run(ctx context.Context, resources []string) error
}

// Uploader sends a validated photo
type Uploader interface {
	Upload(ctx context.Context, file model.File, obs client.UploadObserver) (*model.PhotoAsset, error)
}

// Committer persists a crop box
type Committer interface {
	Commit(ctx context.Context, asset *model.PhotoAsset, box model.CropBox) (*model.PhotoAsset, error)
}

// Indicator shows the busy state of the widget body
type Indicator interface {
	EnableLoading()
	DisableLoading()
}

type nopIndicator struct{}

func (nopIndicator) EnableLoading()  {}
func (nopIndicator) DisableLoading() {}

// Deps are the collaborators of a Controller
type Deps struct {
	Host           model.HostConfig
	Preloader      Preloader
	Prober         probe.Prober
	Constraints    validator.Constraints
	Uploader       Uploader
	Committer      Committer
	Notifier       notify.Notifier
	Indicator      Indicator
	CropOptions    crop.Options
	ContainerWidth int
	SilentReject   bool
	// OnCommitted receives the asset after each successful crop commit
	OnCommitted func(asset *model.PhotoAsset)
	Now         func() time.Time
	Logger      *zap.Logger
}

// Controller owns the widget state and the in-memory photo asset
type Controller struct {
	mu      sync.Mutex
	state   State
	asset   *model.PhotoAsset
	session *crop.Session
	pending []note
	deps    Deps
	logger  *zap.Logger
}

// note is a notification queued under mu and delivered after unlock
type note struct {
	isError bool
	message string
}

// NewController creates a controller hydrated from the host config
func NewController(deps Deps) *Controller {
	if deps.Indicator == nil {
		deps.Indicator = nopIndicator{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{
		state:  Uninitialized,
		asset:  deps.Host.Photo.Clone(),
		deps:   deps,
		logger: deps.Logger.With(zap.String("user_id", deps.Host.UserID)),
	}
}

// State returns the current workflow state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Asset returns a copy of the known photo, or nil
func (c *Controller) Asset() *model.PhotoAsset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asset.Clone()
}

// Session returns the active crop session, or nil outside CropEditing and Committing
func (c *Controller) Session() *crop.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Activate runs the preloader once. Later calls are no-ops once ready.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Uninitialized:
	case Preloading:
		c.mu.Unlock()
		return ErrBusy
	case PreloadFailed:
		c.mu.Unlock()
		return model.NewError(model.PreloadFailed, model.MsgPreloadError, nil)
	case Closed:
		c.mu.Unlock()
		return ErrClosed
	default:
		c.mu.Unlock()
		return nil
	}
	if c.deps.Host.UserID == "" {
		c.mu.Unlock()
		c.logger.Warn("widget not activated, no user")
		return ErrNoUser
	}
	c.transition(Preloading)
	c.mu.Unlock()

	err := c.deps.Preloader.Run(ctx, c.deps.Host.Preload)

	c.mu.Lock()
	defer c.unlock()
	if c.state == Closed {
		return ErrClosed
	}
	if err != nil {
		c.transition(PreloadFailed)
		c.showError(model.MsgPreloadError)
		return err
	}
	c.transition(c.readyState())
	return nil
}

// Open reacts to the user opening the photo dialog. With a known photo it
// starts a crop session seeded with the saved box; without one it leaves the
// upload form showing and returns a nil session.
func (c *Controller) Open(ctx context.Context) (*crop.Session, error) {
	if c.State() == Uninitialized {
		// a preload failure is surfaced by Activate itself
		if err := c.Activate(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.unlock()

	switch c.state {
	case PreloadFailed:
		c.showError(model.MsgPreloadError)
		return nil, model.NewError(model.PreloadFailed, model.MsgPreloadError, nil)
	case ReadyNoPhoto:
		return nil, nil
	case ReadyHasPhoto:
		if err := c.beginCrop(); err != nil {
			return nil, err
		}
		return c.session, nil
	case CropEditing:
		return c.session, nil
	case Closed:
		return nil, ErrClosed
	default:
		if c.state.Busy() {
			return nil, ErrBusy
		}
		return nil, ErrInvalidState
	}
}

// Dismiss closes the dialog. An active crop is discarded.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CropEditing, ReadyNoPhoto, ReadyHasPhoto:
		c.releaseSession()
		c.transition(c.readyState())
		return nil
	case Closed:
		return ErrClosed
	default:
		if c.state.Busy() {
			return ErrBusy
		}
		return ErrInvalidState
	}
}

// SelectFiles takes the files picked in the upload form. The first file
// passing validation is uploaded; the rest are ignored.
func (c *Controller) SelectFiles(ctx context.Context, files ...model.File) error {
	c.mu.Lock()
	if err := c.guard(ReadyNoPhoto); err != nil {
		c.mu.Unlock()
		return err
	}
	if len(files) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.transition(Validating)
	c.mu.Unlock()

	sel, err := c.deps.Constraints.FirstAccepted(ctx, c.deps.Prober, files)
	if err != nil || sel.Accepted == nil {
		c.mu.Lock()
		defer c.unlock()
		if c.state == Closed {
			return ErrClosed
		}
		c.transition(ReadyNoPhoto)
		if err != nil {
			c.logger.Warn("file selection aborted", zap.Error(err))
			if errors.Is(err, context.DeadlineExceeded) {
				c.showError(model.MsgRequestTimeout)
			} else {
				c.showError(model.MsgUnknownError)
			}
			return err
		}
		return c.selectionError(sel)
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.transition(Uploading)
	c.mu.Unlock()

	c.logger.Info("uploading photo",
		zap.String("file", sel.Accepted.Name),
		zap.Int64("size", sel.Accepted.Size),
		zap.Int("ignored", len(files)-1))

	asset, err := c.deps.Uploader.Upload(ctx, *sel.Accepted, &uploadObserver{c: c})

	c.mu.Lock()
	defer c.unlock()
	if c.state == Closed {
		c.logger.Debug("discarding upload result after close")
		return ErrClosed
	}
	if err != nil {
		c.transition(ReadyNoPhoto)
		c.notifyError(err, model.MsgUploadError+model.MsgUnknownError)
		return err
	}

	c.asset = asset
	return c.beginCrop()
}

// SaveCrop commits the current crop box. Crop controls are disabled until
// the commit completes; on failure they are re-enabled for a retry.
func (c *Controller) SaveCrop(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guard(CropEditing); err != nil {
		c.mu.Unlock()
		return err
	}
	session := c.session
	asset := c.asset.Clone()
	session.Disable()
	box := session.CurrentBox()
	c.transition(Committing)
	c.mu.Unlock()

	updated, err := c.deps.Committer.Commit(ctx, asset, box)

	c.mu.Lock()
	if c.state == Closed {
		c.unlock()
		c.logger.Debug("discarding commit result after close")
		return ErrClosed
	}
	if err != nil {
		session.Enable()
		c.transition(CropEditing)
		c.notifyError(err, model.MsgUnknownError)
		c.unlock()
		return err
	}

	c.asset = updated
	c.releaseSession()
	c.transition(ReadyHasPhoto)
	c.showMessage(model.MsgThumbSuccess)
	snapshot := c.asset.Clone()
	c.unlock()

	if c.deps.OnCommitted != nil {
		c.deps.OnCommitted(snapshot)
	}
	return nil
}

// StartOver abandons the crop and returns to the upload form. The uploaded
// photo stays on the server until the next upload replaces it.
func (c *Controller) StartOver() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(CropEditing); err != nil {
		return err
	}
	c.releaseSession()
	c.transition(ReadyNoPhoto)
	return nil
}

// Close tears the widget down. Results of in-flight requests are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseSession()
	c.transition(Closed)
}

// guard checks that the controller is in want. It must be called with mu held.
func (c *Controller) guard(want State) error {
	switch {
	case c.state == want:
		return nil
	case c.state == Closed:
		return ErrClosed
	case c.state.Busy():
		c.logger.Debug("ignoring trigger while busy", zap.Stringer("state", c.state))
		return ErrBusy
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	}
}

// beginCrop starts a session on the known asset. It must be called with mu held.
func (c *Controller) beginCrop() error {
	c.deps.Indicator.EnableLoading()
	session, err := crop.Begin(c.asset, c.deps.ContainerWidth, c.deps.CropOptions, c.deps.Now(), c.logger)
	c.deps.Indicator.DisableLoading()
	if err != nil {
		c.logger.Error("failed to start crop session", zap.Error(err))
		if errors.Is(err, crop.ErrInvalidAsset) {
			c.asset = nil
			c.transition(ReadyNoPhoto)
		} else {
			c.transition(ReadyHasPhoto)
		}
		c.showError(model.MsgImgDimensions)
		return model.NewError(model.ImageDimensionsUnavailable, model.MsgImgDimensions, err)
	}
	c.session = session
	c.transition(CropEditing)
	return nil
}

func (c *Controller) releaseSession() {
	if c.session != nil {
		c.session.Release()
		c.session = nil
	}
}

func (c *Controller) readyState() State {
	if c.asset != nil {
		return ReadyHasPhoto
	}
	return ReadyNoPhoto
}

func (c *Controller) selectionError(sel validator.Selection) error {
	if sel.Rejected == 0 && sel.DecodeFailed > 0 {
		c.showError(model.MsgImgDimensions)
		return model.NewError(model.ImageDimensionsUnavailable, model.MsgImgDimensions, nil)
	}
	c.logger.Info("selected files rejected by constraints", zap.Int("rejected", sel.Rejected))
	if !c.deps.SilentReject {
		c.showError(model.MsgConstraintRejected)
	}
	return model.NewError(model.ConstraintRejected, model.MsgConstraintRejected, nil)
}

func (c *Controller) notifyError(err error, fallback string) {
	var e *model.Error
	if errors.As(err, &e) && e.Detail != "" {
		c.showError(e.Detail)
		return
	}
	c.showError(fallback)
}

func (c *Controller) showError(message string) {
	c.pending = append(c.pending, note{isError: true, message: message})
}

func (c *Controller) showMessage(message string) {
	c.pending = append(c.pending, note{message: message})
}

// unlock releases mu and then delivers queued notifications
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, n := range pending {
		if n.isError {
			c.deps.Notifier.ShowError(n.message)
		} else {
			c.deps.Notifier.ShowMessage(n.message)
		}
	}
}

func (c *Controller) transition(to State) {
	if c.state == Closed {
		return
	}
	c.logger.Debug("state transition", zap.Stringer("from", c.state), zap.Stringer("to", to))
	c.state = to
}

// uploadObserver maps upload phases onto the busy indicator and state
type uploadObserver struct {
	c *Controller
}

func (o *uploadObserver) UploadStarted() {
	o.c.deps.Indicator.EnableLoading()
}

func (o *uploadObserver) ResponseReceived() {
	o.c.mu.Lock()
	defer o.c.mu.Unlock()
	if o.c.state == Uploading {
		o.c.transition(PostUploadMeasuring)
	}
}

func (o *uploadObserver) UploadFinished() {
	o.c.deps.Indicator.DisableLoading()
}
