package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wardrobe/internal/domain"
	"wardrobe/internal/infra"
	"wardrobe/internal/sqlinline"
)

// ClothesRepositoryPG implements domain.ClothingRepository on PostgreSQL.
type ClothesRepositoryPG struct {
	db infra.SQLExecutor
}

// NewClothesRepository creates a clothing repository backed by the given executor.
func NewClothesRepository(db infra.SQLExecutor) *ClothesRepositoryPG {
	return &ClothesRepositoryPG{db: db}
}

// StuckItem is a non-terminal item reported by ListStuck.
type StuckItem struct {
	ID        uuid.UUID
	Status    domain.ProcessingStatus
	UpdatedAt time.Time
}

// Insert stores a new item and fills in its id and timestamps.
func (r *ClothesRepositoryPG) Insert(ctx context.Context, item *domain.ClothingItem) (*domain.ClothingItem, error) {
	if item == nil {
		return nil, errors.New("repo: item is required")
	}
	out := *item
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertClothingItem,
		out.ID,
		out.OwnerID,
		out.Name,
		categoryArg(out.Category),
		out.Color,
		out.Brand,
		out.DisplayImage,
		out.OriginalImage,
		out.Description,
		out.IsPublic,
		out.IsFavorite,
		string(out.Status),
		nullableString(out.LastError),
	)
	if err := row.Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert clothing item: %w", err)
	}
	return &out, nil
}

// FindByID fetches one item.
func (r *ClothesRepositoryPG) FindByID(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	row := r.db.QueryRow(ctx, sqlinline.QSelectClothingItemByID, id)
	item, err := scanClothingItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// FindByOwner lists the owner's items, newest first, optionally filtered by category.
func (r *ClothesRepositoryPG) FindByOwner(ctx context.Context, ownerID uuid.UUID, category *domain.Category) ([]domain.ClothingItem, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectClothingItemsByOwner, ownerID, categoryArg(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ClothingItem, 0)
	for rows.Next() {
		item, err := scanClothingItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Update writes the full mutable record.
func (r *ClothesRepositoryPG) Update(ctx context.Context, item *domain.ClothingItem) error {
	row := r.db.QueryRow(ctx, sqlinline.QUpdateClothingItem,
		item.ID,
		item.Name,
		categoryArg(item.Category),
		item.Color,
		item.Brand,
		item.DisplayImage,
		item.Description,
		item.IsPublic,
		item.IsFavorite,
		string(item.Status),
		nullableString(item.LastError),
	)
	return scanUpdatedAt(row, item)
}

// UpdateDetails writes only user-editable metadata.
func (r *ClothesRepositoryPG) UpdateDetails(ctx context.Context, item *domain.ClothingItem) error {
	row := r.db.QueryRow(ctx, sqlinline.QUpdateClothingItemDetails,
		item.ID,
		item.Name,
		categoryArg(item.Category),
		item.Color,
		item.Brand,
		item.Description,
		item.IsPublic,
		item.IsFavorite,
	)
	return scanUpdatedAt(row, item)
}

// Delete removes an item.
func (r *ClothesRepositoryPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, sqlinline.QDeleteClothingItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetForReprocess restarts a terminal item. A miss is resolved into
// ErrNotFound or ErrConflict with a follow-up read.
func (r *ClothesRepositoryPG) ResetForReprocess(ctx context.Context, id uuid.UUID) (*domain.ClothingItem, error) {
	item, err := scanClothingItem(r.db.QueryRow(ctx, sqlinline.QResetClothingItemForReprocess, id, terminalArgs()))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reset clothing item: %w", err)
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: item is %s", domain.ErrConflict, current.Status)
}

// MarkAbandoned fails stuck items in one statement.
func (r *ClothesRepositoryPG) MarkAbandoned(ctx context.Context, cutoff time.Time, reason string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, sqlinline.QMarkAbandonedClothingItems, cutoff, reason, nonTerminalArgs())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStuck reports non-terminal items last touched before cutoff without changing them.
func (r *ClothesRepositoryPG) ListStuck(ctx context.Context, cutoff time.Time) ([]StuckItem, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectStuckClothingItems, cutoff, nonTerminalArgs())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StuckItem
	for rows.Next() {
		var s StuckItem
		var status string
		if err := rows.Scan(&s.ID, &status, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Status = domain.ProcessingStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClothingItem(row rowScanner) (*domain.ClothingItem, error) {
	var (
		item      domain.ClothingItem
		category  *string
		color     *string
		brand     *string
		desc      *string
		status    string
		lastError *string
	)
	if err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Name,
		&category,
		&color,
		&brand,
		&item.DisplayImage,
		&item.OriginalImage,
		&desc,
		&item.IsPublic,
		&item.IsFavorite,
		&status,
		&lastError,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if category != nil && *category != "" {
		c := domain.Category(*category)
		item.Category = &c
	}
	item.Color = deref(color)
	item.Brand = deref(brand)
	item.Description = deref(desc)
	item.Status = domain.ProcessingStatus(status)
	item.LastError = deref(lastError)
	return &item, nil
}

func scanUpdatedAt(row pgx.Row, item *domain.ClothingItem) error {
	if err := row.Scan(&item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func categoryArg(c *domain.Category) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonTerminalArgs() []string {
	out := make([]string, 0, len(domain.NonTerminalStatuses))
	for _, s := range domain.NonTerminalStatuses {
		out = append(out, string(s))
	}
	return out
}

func terminalArgs() []string {
	return []string{string(domain.StatusCompleted), string(domain.StatusFailed)}
}

var _ domain.ClothingRepository = (*ClothesRepositoryPG)(nil)
