package embedding

import (
	"context"
	"image"
)

// DefaultGridSize is the side length used by NewGridExtractor when size <= 0.
const DefaultGridSize = 8

// GridExtractor is a model-free extractor: the frame downsampled to a
// size x size RGB grid. It needs no network weights, so it backs the
// "grid" vision backend on hosts without a TFLite runtime.
type GridExtractor struct {
	size int
}

// NewGridExtractor returns a GridExtractor with the given grid side length.
func NewGridExtractor(size int) *GridExtractor {
	if size <= 0 {
		size = DefaultGridSize
	}
	return &GridExtractor{size: size}
}

// Extract implements Extractor.
func (g *GridExtractor) Extract(ctx context.Context, frame image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float32, g.Dim())
	if err := FillTensor(frame, g.size, g.size, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dim implements Extractor.
func (g *GridExtractor) Dim() int { return g.size * g.size * 3 }

// Close implements Extractor.
func (g *GridExtractor) Close() error { return nil }
