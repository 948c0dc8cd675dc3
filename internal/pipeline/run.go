package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wardrobe/internal/domain"
	"wardrobe/internal/imageprep"
	"wardrobe/internal/providers/stage"
)

// step pairs a stage with the status announced before it runs.
type step struct {
	status domain.ProcessingStatus
	stage  stage.Stage
}

func (e *Engine) stepsFor(enhance bool) []step {
	steps := make([]step, 0, 2)
	if enhance {
		steps = append(steps, step{status: domain.StatusProcessingAI, stage: e.enhancer})
	}
	return append(steps, step{status: domain.StatusRemovingBackground, stage: e.remover})
}

// errAborted stops a run without touching the item any further.
var errAborted = errors.New("pipeline: run aborted")

func (e *Engine) safeRun(log zerolog.Logger, j job) {
	log = log.With().Str("item_id", j.id.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic recovered while processing item")
			e.fail(log, j.id, fmt.Sprintf("panic: %v", r))
		}
	}()
	e.run(log, j)
}

func (e *Engine) run(log zerolog.Logger, j job) {
	steps := e.stepsFor(j.enhance)
	deadline := time.Duration(len(steps))*e.opts.StageTimeout + deadlineSlack
	ctx, cancel := context.WithTimeout(e.ctx, deadline)
	defer cancel()

	item, err := e.load(ctx, j.id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Msg("item no longer exists, skipping")
			return
		}
		log.Error().Err(err).Msg("load item failed")
		e.fail(log, j.id, err.Error())
		return
	}

	current, err := imageprep.ParseDataURI(item.OriginalImage)
	if err != nil {
		log.Warn().Err(err).Msg("original image is not decodable")
		e.fail(log, j.id, err.Error())
		return
	}
	log.Info().Bool("enhance", j.enhance).Int("stages", len(steps)).Msg("processing started")

	changed := false
	for _, st := range steps {
		if e.ctx.Err() != nil {
			log.Warn().Str("status", string(st.status)).Msg("shutdown interrupted item")
			return
		}
		if err := e.setStatus(ctx, j.id, st.status); err != nil {
			if errors.Is(err, errAborted) {
				log.Info().Msg("item deleted mid-pipeline")
				return
			}
			log.Error().Err(err).Str("status", string(st.status)).Msg("status write failed, continuing")
		}

		start := time.Now()
		out, err := st.stage.Transform(ctx, current)
		stageLog := log.With().Str("stage", st.stage.Name()).Dur("duration", time.Since(start)).Logger()
		if err != nil {
			stageLog.Warn().Err(err).Msg("stage failed, passing image through")
			continue
		}
		if len(out.Data) == 0 {
			stageLog.Warn().Msg("stage returned no image, passing image through")
			continue
		}
		if out.MIME != current.MIME || !bytes.Equal(out.Data, current.Data) {
			changed = true
		}
		current = out
		stageLog.Debug().Msg("stage complete")
	}

	if e.ctx.Err() != nil {
		log.Warn().Msg("shutdown interrupted item before completion")
		return
	}

	display := item.OriginalImage
	if changed {
		display = current.DataURI()
	}
	if err := e.complete(ctx, j.id, display); err != nil {
		if errors.Is(err, errAborted) {
			log.Info().Msg("item deleted before completion")
			return
		}
		log.Error().Err(err).Msg("completion write failed")
		e.fail(log, j.id, err.Error())
		return
	}
	log.Info().Str("status", string(domain.StatusCompleted)).Msg("processing completed")
}

// storeContext detaches store writes from the pipeline deadline so a late
// terminal write still lands.
func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.StoreTimeout)
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	return e.repo.FindByID(sctx, id)
}

// mutate reloads the item, applies fn and writes the full record back.
func (e *Engine) mutate(ctx context.Context, id uuid.UUID, fn func(*domain.ClothingItem)) error {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()

	item, err := e.repo.FindByID(sctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return errAborted
	}
	if err != nil {
		return fmt.Errorf("reload item: %w", err)
	}
	fn(item)
	if err := e.repo.Update(sctx, item); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errAborted
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (e *Engine) setStatus(ctx context.Context, id uuid.UUID, status domain.ProcessingStatus) error {
	return e.mutate(ctx, id, func(item *domain.ClothingItem) {
		item.Status = status
		item.LastError = ""
	})
}

func (e *Engine) complete(ctx context.Context, id uuid.UUID, display string) error {
	return e.mutate(ctx, id, func(item *domain.ClothingItem) {
		item.Status = domain.StatusCompleted
		item.DisplayImage = display
		item.LastError = ""
	})
}

// fail records a terminal FAILED state. Errors are only logged.
func (e *Engine) fail(log zerolog.Logger, id uuid.UUID, reason string) {
	if reason == "" {
		reason = "processing failed"
	}
	err := e.mutate(e.ctx, id, func(item *domain.ClothingItem) {
		item.Status = domain.StatusFailed
		item.LastError = reason
	})
	switch {
	case err == nil:
		log.Warn().Str("status", string(domain.StatusFailed)).Str("reason", reason).Msg("item marked failed")
	case errors.Is(err, errAborted):
		log.Info().Msg("item deleted before failure could be recorded")
	default:
		log.Error().Err(err).Msg("could not record failure")
	}
}
