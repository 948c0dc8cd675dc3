package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wardrobe/internal/domain"
)

// AbandonedReason is written to lastError by the recovery sweep.
const AbandonedReason = "abandoned"

// Sweep marks items that stopped mid-pipeline before cutoff as FAILED. It is
// run once at startup, before the engine accepts work, and by cmd/sweep.
func Sweep(ctx context.Context, repo domain.ClothingRepository, cutoff time.Time, logger zerolog.Logger) (int, error) {
	ids, err := repo.MarkAbandoned(ctx, cutoff, AbandonedReason)
	if err != nil {
		return 0, fmt.Errorf("recovery sweep: %w", err)
	}
	for _, id := range ids {
		logger.Warn().Str("item_id", id.String()).Msg("marked abandoned item as failed")
	}
	logger.Info().Int("count", len(ids)).Time("cutoff", cutoff).Msg("recovery sweep finished")
	return len(ids), nil
}
