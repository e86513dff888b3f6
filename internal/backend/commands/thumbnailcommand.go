package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/ecotrail/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

const (
	DefaultThumbnailWidth   = 320
	defaultThumbnailQuality = 80
)

// ThumbnailParams represents typed parameters for the thumbnail command
type ThumbnailParams struct {
	Width   int
	Quality int
	// Upscale enlarges images narrower than Width.
	Upscale bool
}

func NewThumbnailParamsFromMap(params map[string]any) (*ThumbnailParams, error) {
	width := commandstructure.GetIntParam(params, "width", DefaultThumbnailWidth)
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}
	quality := commandstructure.GetIntParam(params, "quality", defaultThumbnailQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be within 1..100, got %d", quality)
	}
	upscale := commandstructure.GetBoolParam(params, "upscale", false)
	return &ThumbnailParams{Width: width, Quality: quality, Upscale: upscale}, nil
}

// ThumbnailCommand scales an image to a fixed width, preserving aspect
// ratio, and returns it as JPEG. Images narrower than the width are left
// at their size unless upscaling is enabled.
type ThumbnailCommand struct {
	name   string
	params *ThumbnailParams
}

func NewThumbnailCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewThumbnailParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ThumbnailCommand{
		name:   "ThumbnailCommand",
		params: typedParams,
	}, nil
}

// NewThumbnailCommandWithWidth creates a thumbnail command from a concrete width
func NewThumbnailCommandWithWidth(width int) (*ThumbnailCommand, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}
	return &ThumbnailCommand{
		name:   "ThumbnailCommand",
		params: &ThumbnailParams{Width: width, Quality: defaultThumbnailQuality},
	}, nil
}

func (c *ThumbnailCommand) Name() string {
	return c.name
}

func (c *ThumbnailCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		slog.Warn("ThumbnailCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	targetWidth, targetHeight := computeThumbnailSize(bounds.Dx(), bounds.Dy(), c.params.Width, c.params.Upscale)

	slog.Debug("ThumbnailCommand: scaling image",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"target_width", targetWidth,
		"target_height", targetHeight)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	return EncodeJPEG(dst, c.params.Quality)
}

func computeThumbnailSize(originalWidth, originalHeight, maxWidth int, upscale bool) (int, int) {
	if originalWidth == maxWidth || (originalWidth < maxWidth && !upscale) {
		return originalWidth, originalHeight
	}
	height := int(float64(originalHeight) * float64(maxWidth) / float64(originalWidth))
	if height < 1 {
		height = 1
	}
	return maxWidth, height
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ThumbnailCommand", NewThumbnailCommand); err != nil {
		panic(fmt.Sprintf("failed to register ThumbnailCommand: %v", err))
	}
}
