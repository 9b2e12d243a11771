package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yourorg/photo-onboarding/internal/client"
	"github.com/yourorg/photo-onboarding/internal/config"
	"github.com/yourorg/photo-onboarding/internal/crop"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/notify"
	"github.com/yourorg/photo-onboarding/internal/preload"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/validator"
	"github.com/yourorg/photo-onboarding/internal/workflow"

	"go.uber.org/zap"
)

// app is a fully wired widget for one CLI invocation
type app struct {
	controller *workflow.Controller
	logger     *zap.Logger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadSettings()
	if err != nil {
		return nil, err
	}

	host, err := hostConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if userFlag != "" {
		host.UserID = userFlag
	}
	if len(host.Preload) == 0 {
		host.Preload = cfg.Preload.Resources
	}

	token, err := csrfToken(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := clientOptions(cfg, cfg.Client.UploadPath, host.UserID)
	opts.CSRFToken = token

	prober := probe.NewImageProber(logger)
	uploader, err := client.NewUploadClient(opts, prober, logger)
	if err != nil {
		return nil, err
	}
	committer, err := client.NewCommitClient(opts, logger)
	if err != nil {
		return nil, err
	}
	constraints, err := validator.NewConstraints(cfg.Upload.MinWidth, cfg.Upload.MinHeight, cfg.Upload.MaxFileSize)
	if err != nil {
		return nil, err
	}

	loader := preload.NewHTTPLoader(cfg.Client.BaseURL, cfg.Client.RequestTimeout, preload.NewRegistry(), logger)

	controller := workflow.NewController(workflow.Deps{
		Host:        *host,
		Preloader:   preload.NewPreloader(loader, cfg.Preload.MaxRetries, logger),
		Prober:      prober,
		Constraints: constraints,
		Uploader:    uploader,
		Committer:   committer,
		Notifier: notify.Multi{
			notify.NewWriterNotifier(os.Stderr),
			notify.NewLogNotifier(logger),
		},
		Indicator: &terminalIndicator{w: os.Stderr},
		CropOptions: crop.Options{
			AspectWidth:        cfg.Crop.AspectWidth,
			AspectHeight:       cfg.Crop.AspectHeight,
			MinWidth:           cfg.Crop.MinThumbWidth,
			MinHeight:          cfg.Crop.MinThumbHeight,
			Padding:            cfg.Crop.Padding,
			MinContainerWidth:  cfg.Crop.MinContainerWidth,
			MinContainerHeight: cfg.Crop.MinContainerHeight,
		},
		ContainerWidth: containerWidthFlag,
		SilentReject:   cfg.Upload.SilentReject,
		Logger:         logger,
	})

	if err := controller.Activate(ctx); err != nil {
		logger.Sync()
		return nil, err
	}

	return &app{controller: controller, logger: logger}, nil
}

// finishCrop applies the crop flags and commits, or prints the box with --no-commit
func (a *app) finishCrop(ctx context.Context, out io.Writer) error {
	session := a.controller.Session()
	if session == nil {
		return fmt.Errorf("crop dialog not open (state %s)", a.controller.State())
	}
	if err := adjust(session); err != nil {
		return err
	}
	logBox(a.logger, session)

	if noCommitFlag {
		return printJSON(out, session.CurrentBox())
	}
	if err := a.controller.SaveCrop(ctx); err != nil {
		return err
	}
	return printJSON(out, a.controller.Asset())
}

func (a *app) close() {
	a.controller.Close()
	a.logger.Sync()
}

func loadSettings() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, nil, err
	}
	if baseURLFlag != "" {
		cfg.Client.BaseURL = baseURLFlag
	}
	if csrfTokenFlag != "" {
		cfg.Client.CSRFToken = csrfTokenFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func hostConfig(ctx context.Context, cfg *config.Config) (*model.HostConfig, error) {
	if hostFlag != "" {
		data, err := os.ReadFile(hostFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to read host config: %w", err)
		}
		var host model.HostConfig
		if err := json.Unmarshal(data, &host); err != nil {
			return nil, fmt.Errorf("failed to parse host config: %w", err)
		}
		return &host, nil
	}
	if userFlag == "" {
		return nil, fmt.Errorf("either --host or --user is required")
	}
	return client.FetchHostConfig(ctx, clientOptions(cfg, "/users/"+userFlag+"/photo", userFlag))
}

func csrfToken(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Client.CSRFToken != "" {
		return cfg.Client.CSRFToken, nil
	}
	return client.FetchCSRFToken(ctx, clientOptions(cfg, "/csrf", ""))
}

func clientOptions(cfg *config.Config, path, userID string) client.Options {
	return client.Options{
		BaseURL:        cfg.Client.BaseURL,
		Path:           path,
		UserID:         userID,
		CSRFToken:      cfg.Client.CSRFToken,
		RequestTimeout: cfg.Client.RequestTimeout,
	}
}

// terminalIndicator prints the loading state of the dialog body
type terminalIndicator struct {
	w io.Writer
}

func (t *terminalIndicator) EnableLoading() {
	fmt.Fprintln(t.w, "loading...")
}

func (t *terminalIndicator) DisableLoading() {}

func createLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// terminal output belongs to the notifier, logs go to stderr
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
