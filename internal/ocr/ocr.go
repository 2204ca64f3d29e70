package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/devverse06/FinSight/internal/imaging"
)

// Extractor defines the interface for text extraction from a grayscale raster
type Extractor interface {
	// ExtractText recognizes text in the raster. The result may be empty
	// if nothing is recognized.
	ExtractText(ctx context.Context, img *image.Gray) (string, error)
	// Close releases any engine resources
	Close() error
}

// Tesseract implements the Extractor interface using the Tesseract engine
// with default settings: no language hints, no page-segmentation tuning.
type Tesseract struct{}

// NewTesseract creates a new Tesseract Extractor instance
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

// ExtractText runs Tesseract over the raster and returns the recognized text.
// Engine failures propagate to the caller; there is no retry.
func (t *Tesseract) ExtractText(ctx context.Context, img *image.Gray) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("preparing raster for OCR: %w", err)
	}

	// A gosseract client is not safe for concurrent use, so each request
	// gets its own.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("loading raster into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}

// Close closes the extractor (no-op, clients are per request)
func (t *Tesseract) Close() error {
	return nil
}
