// Package face turns images into embeddings and compares them. The
// matching policy lives in the service layer; this package only knows how
// to extract and score.
package face

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrNoFace: the image decoded but holds nothing usable.
	ErrNoFace = errors.New("no face detected")
	// ErrUndecodable: the bytes are not an image.
	ErrUndecodable = errors.New("image could not be decoded")
)

// Extractor produces an embedding for the single face in image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, image []byte) ([]float32, error)

func (f ExtractorFunc) Extract(ctx context.Context, image []byte) ([]float32, error) {
	return f(ctx, image)
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length or zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
