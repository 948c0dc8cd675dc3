// Package wardrobe is the use-case layer behind the /clothes routes. It owns
// admission of new uploads and enforces that only the owner sees an item.
package wardrobe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wardrobe/internal/domain"
	"wardrobe/internal/imageprep"
)

// Scheduler admits items into the processing pipeline. Reserve must succeed
// before rows are inserted so an overloaded pool leaves nothing behind.
type Scheduler interface {
	Reserve(n int) error
	Release(n int)
	Dispatch(ids []uuid.UUID, enhance bool)
}

// Submission is one image with optional initial metadata.
type Submission struct {
	Image   string
	Details domain.ItemDetails
}

// Service implements the wardrobe use cases.
type Service struct {
	repo      domain.ClothingRepository
	scheduler Scheduler
	maxBatch  int
	logger    zerolog.Logger
}

// NewService wires the store and scheduler. maxBatch <= 0 disables the limit.
func NewService(repo domain.ClothingRepository, scheduler Scheduler, maxBatch int, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		maxBatch:  maxBatch,
		logger:    logger.With().Str("component", "wardrobe").Logger(),
	}
}

// Upload submits one image.
func (s *Service) Upload(ctx context.Context, owner uuid.UUID, image string, enhance bool) (*domain.ClothingItem, error) {
	items, err := s.SubmitAdvanced(ctx, owner, []Submission{{Image: image}}, enhance)
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// UploadBatch submits several images without metadata.
func (s *Service) UploadBatch(ctx context.Context, owner uuid.UUID, images []string, enhance bool) ([]*domain.ClothingItem, error) {
	subs := make([]Submission, len(images))
	for i, img := range images {
		subs[i] = Submission{Image: img}
	}
	return s.SubmitAdvanced(ctx, owner, subs, enhance)
}

// SubmitAdvanced validates every submission, reserves pipeline capacity,
// inserts PENDING rows and schedules them.
func (s *Service) SubmitAdvanced(ctx context.Context, owner uuid.UUID, subs []Submission, enhance bool) ([]*domain.ClothingItem, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", domain.ErrValidation)
	}
	if s.maxBatch > 0 && len(subs) > s.maxBatch {
		return nil, fmt.Errorf("%w: at most %d images per request", domain.ErrValidation, s.maxBatch)
	}

	images := make([]string, len(subs))
	for i, sub := range subs {
		payload, err := imageprep.ParseDataURI(sub.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", domain.ErrValidation, i, err)
		}
		if !payload.IsImage() {
			return nil, fmt.Errorf("%w: image %d is %s, not an image", domain.ErrValidation, i, payload.MIME)
		}
		images[i] = payload.DataURI()
	}

	if err := s.scheduler.Reserve(len(subs)); err != nil {
		return nil, err
	}

	created := make([]*domain.ClothingItem, 0, len(subs))
	ids := make([]uuid.UUID, 0, len(subs))
	for i, sub := range subs {
		item := domain.NewPendingItem(owner, images[i])
		sub.Details.Apply(item)
		stored, err := s.repo.Insert(ctx, item)
		if err != nil {
			s.scheduler.Release(len(subs))
			s.rollback(ctx, ids)
			return nil, fmt.Errorf("insert item: %w", err)
		}
		created = append(created, stored)
		ids = append(ids, stored.ID)
	}
	s.scheduler.Dispatch(ids, enhance)

	s.logger.Info().
		Str("owner_id", owner.String()).
		Int("count", len(ids)).
		Bool("enhance", enhance).
		Msg("items submitted")
	return created, nil
}

// rollback removes rows inserted by a submission that failed part way, so a
// failed request leaves nothing behind for the pipeline or the owner to find.
func (s *Service) rollback(ctx context.Context, ids []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("item_id", id.String()).Msg("rollback of partial submission failed")
		}
	}
}

// Get returns an item the requester owns.
func (s *Service) Get(ctx context.Context, requester, id uuid.UUID) (*domain.ClothingItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.OwnedBy(requester) {
		return nil, domain.ErrForbidden
	}
	return item, nil
}

// List returns the requester's items, newest first.
func (s *Service) List(ctx context.Context, owner uuid.UUID, category *domain.Category) ([]domain.ClothingItem, error) {
	return s.repo.FindByOwner(ctx, owner, category)
}

// Update applies metadata edits. Status and images are never touched, and an
// empty edit performs no write.
func (s *Service) Update(ctx context.Context, requester, id uuid.UUID, details domain.ItemDetails) (*domain.ClothingItem, error) {
	item, err := s.Get(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if details.Empty() {
		return item, nil
	}
	if details.Name != nil && strings.TrimSpace(*details.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be blank", domain.ErrValidation)
	}
	details.Apply(item)
	if err := s.repo.UpdateDetails(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes an item the requester owns.
func (s *Service) Delete(ctx context.Context, requester, id uuid.UUID) error {
	if _, err := s.Get(ctx, requester, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Add stores an already finished picture as a COMPLETED item.
func (s *Service) Add(ctx context.Context, owner uuid.UUID, picture string, details domain.ItemDetails) (*domain.ClothingItem, error) {
	picture = strings.TrimSpace(picture)
	if picture == "" {
		return nil, fmt.Errorf("%w: clothingPictureUrl is required", domain.ErrValidation)
	}
	if strings.HasPrefix(picture, "data:") {
		if _, err := imageprep.ParseDataURI(picture); err != nil {
			return nil, fmt.Errorf("%w: clothingPictureUrl: %v", domain.ErrValidation, err)
		}
	}
	item := domain.NewPendingItem(owner, picture)
	item.Status = domain.StatusCompleted
	details.Apply(item)
	return s.repo.Insert(ctx, item)
}

// Reprocess restarts the pipeline for a terminal item from its original image.
func (s *Service) Reprocess(ctx context.Context, requester, id uuid.UUID, enhance bool) (*domain.ClothingItem, error) {
	item, err := s.Get(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if !item.Status.Terminal() {
		return nil, fmt.Errorf("%w: item is still %s", domain.ErrConflict, item.Status)
	}
	if _, err := imageprep.ParseDataURI(item.OriginalImage); err != nil {
		return nil, fmt.Errorf("%w: item has no processable image", domain.ErrValidation)
	}
	if err := s.scheduler.Reserve(1); err != nil {
		return nil, err
	}

	reset, err := s.repo.ResetForReprocess(ctx, item.ID)
	if err != nil {
		s.scheduler.Release(1)
		return nil, err
	}
	s.scheduler.Dispatch([]uuid.UUID{reset.ID}, enhance)
	s.logger.Info().Str("item_id", reset.ID.String()).Bool("enhance", enhance).Msg("item resubmitted")
	return reset, nil
}
