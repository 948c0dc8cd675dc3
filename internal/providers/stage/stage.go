// Package stage adapts image providers into the pipeline's image-to-image steps.
package stage

import (
	"context"

	"wardrobe/internal/imageprep"
)

// Stage names used in logs and status bookkeeping.
const (
	NameEnhancer = "enhancer"
	NameRemover  = "remover"
)

// Stage transforms one image into another. Implementations must be safe for
// concurrent use and must not panic on malformed input.
type Stage interface {
	Name() string
	Transform(ctx context.Context, img imageprep.Payload) (imageprep.Payload, error)
}

// Noop passes images through untouched. It stands in for a stage whose
// provider has no credentials.
type Noop struct {
	StageName string
}

// Name returns the configured name, defaulting to "noop".
func (n Noop) Name() string {
	if n.StageName == "" {
		return "noop"
	}
	return n.StageName
}

// Transform returns img unchanged.
func (Noop) Transform(ctx context.Context, img imageprep.Payload) (imageprep.Payload, error) {
	if err := ctx.Err(); err != nil {
		return img, err
	}
	return img, nil
}
