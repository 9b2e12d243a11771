package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yourorg/photo-onboarding/internal/client"
	"github.com/yourorg/photo-onboarding/internal/crop"
	"github.com/yourorg/photo-onboarding/internal/model"
	"github.com/yourorg/photo-onboarding/internal/probe"
	"github.com/yourorg/photo-onboarding/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	files := make([]model.File, 0, len(args))
	for _, path := range args {
		file, err := probe.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	ctrl := app.controller
	session, err := ctrl.Open(ctx)
	if err != nil && ctrl.State() != workflow.ReadyNoPhoto {
		return err
	}
	if session != nil {
		// a new upload replaces the current photo
		if err := ctrl.StartOver(); err != nil {
			return err
		}
	}

	if err := ctrl.SelectFiles(ctx, files...); err != nil {
		return err
	}
	return app.finishCrop(ctx, cmd.OutOrStdout())
}

func runCrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	session, err := app.controller.Open(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return errors.New("no photo uploaded yet, use the upload command")
	}
	return app.finishCrop(ctx, cmd.OutOrStdout())
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadSettings()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read markdown: %w", err)
	}

	opts := clientOptions(cfg, cfg.Client.PreviewPath, "")
	if opts.CSRFToken, err = csrfToken(ctx, cfg); err != nil {
		return err
	}
	preview, err := client.NewPreviewClient(opts, logger)
	if err != nil {
		return err
	}

	html, err := preview.Render(ctx, string(text))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), html)
	return nil
}

// adjust applies the crop flags to session in the order box, resize, move
func adjust(session *crop.Session) error {
	if boxFlag != "" {
		box, err := parseBox(boxFlag)
		if err != nil {
			return err
		}
		if !session.Seed(box) {
			return fmt.Errorf("crop box %s was not accepted", boxFlag)
		}
	}
	if resizeFlag != "" {
		name, delta, ok := strings.Cut(resizeFlag, ":")
		if !ok {
			return fmt.Errorf("invalid --resize %q, want handle:dx,dy", resizeFlag)
		}
		handle, err := crop.ParseHandle(name)
		if err != nil {
			return err
		}
		dx, dy, err := parsePair(delta)
		if err != nil {
			return err
		}
		session.Resize(handle, dx, dy)
	}
	if moveFlag != "" {
		dx, dy, err := parsePair(moveFlag)
		if err != nil {
			return err
		}
		session.Move(dx, dy)
	}
	return nil
}

func parseBox(s string) (model.CropBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.CropBox{}, fmt.Errorf("invalid box %q, want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return model.CropBox{}, fmt.Errorf("invalid box %q: %w", s, err)
		}
		v[i] = n
	}
	return model.CropBox{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func parsePair(s string) (float64, float64, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid pair %q, want dx,dy", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pair %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pair %q: %w", s, err)
	}
	return x, y, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func logBox(logger *zap.Logger, session *crop.Session) {
	w, h := session.DisplaySize()
	logger.Debug("crop dialog",
		zap.String("image", session.ImageURL()),
		zap.Int("display_width", w),
		zap.Int("display_height", h),
		zap.Float64("scale", session.Scale()),
		zap.String("box", session.CurrentBox().String()))
}
