package stage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"wardrobe/internal/imageprep"
)

// Cutter removes the background from an image and returns a PNG with alpha.
type Cutter interface {
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}

// Remover strips backgrounds. It never fails: on any provider error the input
// is returned as is and the error is only logged.
type Remover struct {
	cutter  Cutter
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRemover builds a Remover. timeout bounds each call.
func NewRemover(cutter Cutter, timeout time.Duration, logger zerolog.Logger) *Remover {
	return &Remover{
		cutter:  cutter,
		timeout: timeout,
		logger:  logger.With().Str("component", "remover").Logger(),
	}
}

// Name implements Stage.
func (r *Remover) Name() string { return NameRemover }

// Transform implements Stage.
func (r *Remover) Transform(ctx context.Context, img imageprep.Payload) (imageprep.Payload, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.cutter.RemoveBackground(ctx, img.Data)
	if err == nil && len(out) == 0 {
		err = errors.New("empty result")
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("remover: keeping input image")
		return img, nil
	}

	r.logger.Debug().Int("bytes", len(out)).Dur("duration", time.Since(start)).Msg("remover: background removed")
	return imageprep.Payload{MIME: "image/png", Data: out}, nil
}
