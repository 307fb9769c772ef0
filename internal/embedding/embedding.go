// Package embedding turns camera frames into fixed-length feature vectors.
package embedding

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoders
	_ "image/png"

	"github.com/kamiai/kamiai/internal/errors"
)

// Extractor maps a frame to an embedding of Dim() values.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, frame image.Image) ([]float32, error)
	Dim() int
	Close() error
}

// ErrEmptyFrame is returned when a frame has no pixels.
var ErrEmptyFrame = errors.NewStd("frame has no pixels")

// DecodeFrame decodes PNG or JPEG bytes into an image.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New(ErrEmptyFrame).
			Component("embedding").
			Category(errors.CategoryValidation).
			Build()
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("decode frame: %w", err)).
			Component("embedding").
			Category(errors.CategoryValidation).
			Context("bytes", len(data)).
			Build()
	}
	if img.Bounds().Empty() {
		return nil, errors.New(ErrEmptyFrame).
			Component("embedding").
			Category(errors.CategoryValidation).
			Context("format", format).
			Build()
	}
	return img, nil
}

// FillTensor samples img into dst as an NHWC float32 tensor of shape
// (1, height, width, 3) with channels scaled to [0,1]. The image is resized
// with nearest-neighbor sampling. dst must hold height*width*3 values.
func FillTensor(img image.Image, width, height int, dst []float32) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid tensor size %dx%d", width, height)
	}
	if len(dst) < width*height*3 {
		return fmt.Errorf("tensor buffer too small: have %d, want %d", len(dst), width*height*3)
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return ErrEmptyFrame
	}

	for y := range height {
		sy := bounds.Min.Y + y*srcH/height
		for x := range width {
			sx := bounds.Min.X + x*srcW/width
			r32, g32, b32, _ := img.At(sx, sy).RGBA()

			base := (y*width + x) * 3
			dst[base+0] = float32(r32>>8) / 255.0
			dst[base+1] = float32(g32>>8) / 255.0
			dst[base+2] = float32(b32>>8) / 255.0
		}
	}

	return nil
}
