package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
)

const (
	DefaultEngineName = "tesseract"
	CloudEngineName   = "cloud"
)

// Engine turns an image region into text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// BatchAware engines hold state that is reset at the start of every batch.
type BatchAware interface {
	BeginBatch()
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
