package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wardrobe/internal/domain"
)

// ClothesRepositoryMemory keeps items in process memory. It backs
// STORE_DRIVER=memory for local runs and serves as the store in tests.
type ClothesRepositoryMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.ClothingItem
	now   func() time.Time
}

// NewMemoryClothesRepository returns an empty in-memory repository.
func NewMemoryClothesRepository() *ClothesRepositoryMemory {
	return &ClothesRepositoryMemory{items: make(map[uuid.UUID]domain.ClothingItem), now: time.Now}
}

func (r *ClothesRepositoryMemory) Insert(ctx context.Context, item *domain.ClothingItem) (*domain.ClothingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := cloneItem(*item)
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := r.now()
	out.CreatedAt, out.UpdatedAt = now, now

	r.mu.Lock()
	r.items[out.ID] = out
	r.mu.Unlock()

	ret := cloneItem(out)
	return &ret, nil
}

func (r *ClothesRepositoryMemory) FindByID(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	item, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneItem(item)
	return &out, nil
}

func (r *ClothesRepositoryMemory) FindByOwner(ctx context.Context, ownerID uuid.UUID, category *domain.Category) ([]domain.ClothingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]domain.ClothingItem, 0)
	for _, item := range r.items {
		if item.OwnerID != ownerID {
			continue
		}
		if category != nil && (item.Category == nil || *item.Category != *category) {
			continue
		}
		out = append(out, cloneItem(item))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *ClothesRepositoryMemory) Update(ctx context.Context, item *domain.ClothingItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	next := cloneItem(*item)
	next.OwnerID = stored.OwnerID
	next.OriginalImage = stored.OriginalImage
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = r.now()
	r.items[item.ID] = next
	item.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *ClothesRepositoryMemory) UpdateDetails(ctx context.Context, item *domain.ClothingItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Name = item.Name
	stored.Category = cloneCategory(item.Category)
	stored.Color = item.Color
	stored.Brand = item.Brand
	stored.Description = item.Description
	stored.IsPublic = item.IsPublic
	stored.IsFavorite = item.IsFavorite
	stored.UpdatedAt = r.now()
	r.items[item.ID] = stored
	item.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *ClothesRepositoryMemory) ResetForReprocess(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !stored.Status.Terminal() {
		return nil, fmt.Errorf("%w: item is %s", domain.ErrConflict, stored.Status)
	}
	stored.Status = domain.StatusPending
	stored.DisplayImage = stored.OriginalImage
	stored.LastError = ""
	stored.UpdatedAt = r.now()
	r.items[id] = stored
	out := cloneItem(stored)
	return &out, nil
}

func (r *ClothesRepositoryMemory) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *ClothesRepositoryMemory) MarkAbandoned(ctx context.Context, cutoff time.Time, reason string) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	now := r.now()
	for id, item := range r.items {
		if item.Status.Terminal() || !item.UpdatedAt.Before(cutoff) {
			continue
		}
		item.Status = domain.StatusFailed
		item.LastError = reason
		item.UpdatedAt = now
		r.items[id] = item
		ids = append(ids, id)
	}
	return ids, nil
}

func cloneItem(item domain.ClothingItem) domain.ClothingItem {
	item.Category = cloneCategory(item.Category)
	return item
}

func cloneCategory(c *domain.Category) *domain.Category {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

var _ domain.ClothingRepository = (*ClothesRepositoryMemory)(nil)
