package face

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

const (
	gridSize = 16
	// Below this standard deviation (on a 0..1 luma scale) the frame is
	// treated as blank: lens cap, dark hallway, solid fill.
	minContrast = 0.01
	// MaxDimension caps either side of an upload before it is decoded.
	MaxDimension = 4096
)

// PixelExtractor is the built-in fallback used when no extractor service
// is configured. It shrinks the image to a 16x16 luma grid and returns the
// mean-centred, unit-length grid as the embedding. Two captures of the
// same scene land close together; it is not a face recogniser.
type PixelExtractor struct{}

func (PixelExtractor) Extract(ctx context.Context, img []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: image %dx%d exceeds %dx%d", ErrUndecodable, cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	}

	m, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	b := m.Bounds()
	if b.Dx() < gridSize || b.Dy() < gridSize {
		return nil, fmt.Errorf("%w: image %dx%d smaller than %dx%d", ErrNoFace, b.Dx(), b.Dy(), gridSize, gridSize)
	}

	var sums [gridSize * gridSize]float64
	var counts [gridSize * gridSize]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		gy := (y - b.Min.Y) * gridSize / b.Dy()
		for x := b.Min.X; x < b.Max.X; x++ {
			gx := (x - b.Min.X) * gridSize / b.Dx()
			r, g, bl, _ := m.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channels, scaled to 0..1.
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 0xffff
			sums[gy*gridSize+gx] += luma
			counts[gy*gridSize+gx]++
		}
	}

	var mean float64
	cells := make([]float64, len(sums))
	for i := range sums {
		cells[i] = sums[i] / float64(counts[i])
		mean += cells[i]
	}
	mean /= float64(len(cells))

	var ss float64
	for i := range cells {
		cells[i] -= mean
		ss += cells[i] * cells[i]
	}
	if math.Sqrt(ss/float64(len(cells))) < minContrast {
		return nil, ErrNoFace
	}

	norm := math.Sqrt(ss)
	out := make([]float32, len(cells))
	for i, c := range cells {
		out[i] = float32(c / norm)
	}
	return out, nil
}
