package photolist

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/ecotrail/internal/backend/commands"
	"github.com/jo-hoe/ecotrail/internal/backend/commandstructure"
)

// Thumbnailer derives list thumbnails from stored image bytes. The downscale
// always runs first, followed by any configured extra commands.
type Thumbnailer struct {
	width   int
	invoker *commandstructure.CommandInvoker
}

func NewThumbnailer(width int, extra []commandstructure.CommandConfig) (*Thumbnailer, error) {
	if width <= 0 {
		width = commands.DefaultThumbnailWidth
	}
	scale, err := commands.NewThumbnailCommandWithWidth(width)
	if err != nil {
		return nil, err
	}
	extraCommands, err := commandstructure.DefaultRegistry.CreateAll(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid thumbnail commands: %w", err)
	}

	pipeline := append([]commandstructure.Command{scale}, extraCommands...)
	return &Thumbnailer{
		width:   width,
		invoker: commandstructure.NewCommandInvoker(pipeline),
	}, nil
}

// Thumbnail returns the thumbnail bytes and their content type. Images that
// cannot be processed get the placeholder artwork instead of an error.
func (t *Thumbnailer) Thumbnail(image []byte) ([]byte, string, error) {
	data, err := t.invoker.Execute(image)
	if err == nil && len(data) > 0 {
		return data, commands.ContentType(), nil
	}
	slog.Warn("thumbnail pipeline failed, using placeholder", "error", err, "input_size_bytes", len(image))

	placeholder, err := commands.RenderPlaceholder(t.width, max(t.width*3/4, 1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to render placeholder thumbnail: %w", err)
	}
	return placeholder, commands.ContentType(), nil
}
