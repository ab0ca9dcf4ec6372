package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"signature-lab/internal/studio"
)

// BackgroundRasterizer renders the card's generated background at the
// requested pixel density. Text and frame compositing happen on the
// rendering surface; the exported PNG carries the background asset.
type BackgroundRasterizer struct{}

func (BackgroundRasterizer) RenderPNG(ctx context.Context, snap studio.Snapshot, scale int) ([]byte, error) {
	if snap.BackgroundImage == "" {
		return nil, errors.New("no background image to export, generate one first")
	}

	raw, err := decodeDataURI(snap.BackgroundImage)
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}

	if scale < 1 {
		scale = 1
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			dst.Set(x, y, src.At(bounds.Min.X+x/scale, bounds.Min.Y+y/scale))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDataURI(value string) ([]byte, error) {
	idx := strings.IndexByte(value, ',')
	if idx < 0 || !strings.HasPrefix(value, "data:") {
		return nil, errors.New("background is not a data URI")
	}
	return base64.StdEncoding.DecodeString(value[idx+1:])
}
