package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/ecotrail/internal/backend/commandstructure"
)

// OrientationParams represents typed parameters for orientation command
type OrientationParams struct {
	Orientation string
	Quality     int
}

func NewOrientationParamsFromMap(params map[string]any) (*OrientationParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"orientation"}); err != nil {
		return nil, err
	}
	orientation := commandstructure.GetStringParam(params, "orientation", "")
	if orientation != "portrait" && orientation != "landscape" {
		return nil, fmt.Errorf("invalid orientation: %s (must be 'portrait' or 'landscape')", orientation)
	}
	quality := commandstructure.GetIntParam(params, "quality", defaultThumbnailQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be within 1..100, got %d", quality)
	}
	return &OrientationParams{Orientation: orientation, Quality: quality}, nil
}

// OrientationCommand rotates an image by 90 degrees clockwise when its
// aspect does not match the configured orientation, so every thumbnail in
// the list has the same shape.
type OrientationCommand struct {
	name   string
	params *OrientationParams
}

func NewOrientationCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewOrientationParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &OrientationCommand{
		name:   "OrientationCommand",
		params: typedParams,
	}, nil
}

func (c *OrientationCommand) Name() string {
	return c.name
}

func (c *OrientationCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := decodeImage(imageData)
	if err != nil {
		slog.Error("OrientationCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	isPortrait := height > width
	needsPortrait := c.params.Orientation == "portrait"
	if width == height || isPortrait == needsPortrait {
		slog.Debug("OrientationCommand: already in correct orientation", "width", width, "height", height)
		return imageData, nil
	}

	slog.Debug("OrientationCommand: rotating image 90 degrees clockwise",
		"width", width,
		"height", height,
		"target_orientation", c.params.Orientation)

	rotated := image.NewRGBA(image.Rect(0, 0, height, width))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// (x,y) -> (height-1-y, x)
			rotated.Set(height-1-y, x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return EncodeJPEG(rotated, c.params.Quality)
}

func (c *OrientationCommand) GetOrientation() string {
	return c.params.Orientation
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("OrientationCommand", NewOrientationCommand); err != nil {
		panic(fmt.Sprintf("failed to register OrientationCommand: %v", err))
	}
}
