package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"signature-lab/internal/studio"
)

const (
	downloadScale = 4
	shareScale    = 3

	shareTitle   = "Signature Lab greeting card"
	shareCaption = "Sharing a leadership card with an expert touch."
)

// Rasterizer turns the rendered card into PNG bytes at a pixel-density
// multiplier. The rendering itself is an external collaborator.
type Rasterizer interface {
	RenderPNG(ctx context.Context, snap studio.Snapshot, scale int) ([]byte, error)
}

// ShareTarget is the platform share sheet, when one exists.
type ShareTarget interface {
	Share(ctx context.Context, file File) error
}

type File struct {
	Name    string
	MIME    string
	Title   string
	Caption string
	Data    []byte
}

// ErrShareUnavailable tells the caller to instruct the user to download
// and send the card manually.
var ErrShareUnavailable = errors.New("sharing is not available, download the image and send it manually")

type Options struct {
	Rasterizer Rasterizer
	Share      ShareTarget
	OutputDir  string
	Logger     *slog.Logger
}

type Exporter struct {
	rasterizer Rasterizer
	share      ShareTarget
	outputDir  string
	logger     *slog.Logger
	now        func() time.Time
}

func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	return &Exporter{
		rasterizer: opts.Rasterizer,
		share:      opts.Share,
		outputDir:  outputDir,
		logger:     logger,
		now:        time.Now,
	}
}

// Download rasterizes the card at 4x density and saves it under a
// timestamped name. Returns the written path.
func (e *Exporter) Download(ctx context.Context, snap studio.Snapshot) (string, error) {
	data, err := e.rasterizer.RenderPNG(ctx, snap, downloadScale)
	if err != nil {
		return "", fmt.Errorf("rasterize card: %w", err)
	}

	name := fmt.Sprintf("Signature_Card_%d.png", e.now().UnixMilli())
	path := filepath.Join(e.outputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save card: %w", err)
	}

	e.logger.Info("card saved", "path", path)
	return path, nil
}

// Share rasterizes the card at 3x density and hands it to the platform
// share sheet. Without a share target the caller falls back to Download.
func (e *Exporter) Share(ctx context.Context, snap studio.Snapshot) error {
	if e.share == nil {
		return ErrShareUnavailable
	}

	data, err := e.rasterizer.RenderPNG(ctx, snap, shareScale)
	if err != nil {
		return fmt.Errorf("rasterize card: %w", err)
	}

	return e.share.Share(ctx, File{
		Name:    "signature.png",
		MIME:    "image/png",
		Title:   shareTitle,
		Caption: shareCaption,
		Data:    data,
	})
}
