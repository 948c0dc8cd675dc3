package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClothingRepository defines persistence for clothing items.
//
// Writes are last-writer-wins per item. Update rewrites the whole record and
// is reserved for the processing engine; owner edits go through UpdateDetails
// so they never clobber status or images.
type ClothingRepository interface {
	Insert(ctx context.Context, item *ClothingItem) (*ClothingItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ClothingItem, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, category *Category) ([]ClothingItem, error)
	Update(ctx context.Context, item *ClothingItem) error
	UpdateDetails(ctx context.Context, item *ClothingItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ResetForReprocess atomically moves a terminal item back to PENDING with
	// its display image restored to the original and lastError cleared. It
	// returns ErrConflict when the item is not terminal.
	ResetForReprocess(ctx context.Context, id uuid.UUID) (*ClothingItem, error)
	// MarkAbandoned fails every non-terminal item last touched before cutoff
	// and returns the affected ids.
	MarkAbandoned(ctx context.Context, cutoff time.Time, reason string) ([]uuid.UUID, error)
}
