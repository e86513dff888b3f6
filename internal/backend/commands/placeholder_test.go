package commands

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestRenderPlaceholder(t *testing.T) {
	out, err := RenderPlaceholder(160, 120)
	if err != nil {
		t.Fatalf("RenderPlaceholder error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("placeholder is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 120 {
		t.Errorf("unexpected placeholder size %v", img.Bounds())
	}
}

func TestRenderPlaceholder_InvalidSize(t *testing.T) {
	if _, err := RenderPlaceholder(0, 10); err == nil {
		t.Error("Expected error for zero width")
	}
}
