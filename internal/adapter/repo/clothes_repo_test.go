package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"wardrobe/internal/domain"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

type stubRows struct {
	testRowsBase
	rows   [][]any
	idx    int
	closed bool
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error { return assign(dest, r.rows[r.idx-1]) }

func (r *stubRows) Err() error { return nil }

func (r *stubRows) Close() { r.closed = true }

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(values[i]))
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	calls    []execCall
	row      pgx.Row
	queue    []pgx.Row
	rows     *stubRows
	affected int64
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", s.affected)), nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, execCall{query: query, args: args})
	if len(s.queue) > 0 {
		row := s.queue[0]
		s.queue = s.queue[1:]
		return row
	}
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	if s.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return s.rows, nil
}

func strPtr(s string) *string { return &s }

func itemRow(id, owner uuid.UUID, status string, category, lastError *string, created time.Time) []any {
	return []any{
		id, owner, "Linen shirt", category, strPtr("white"), (*string)(nil),
		"data:image/png;base64,BBBB", "data:image/png;base64,AAAA", (*string)(nil),
		true, false, status, lastError, created, created,
	}
}

func TestClothesRepositoryFindByID(t *testing.T) {
	id, owner := uuid.New(), uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	exec := &stubExecutor{row: stubRow{values: itemRow(id, owner, "COMPLETED", strPtr("SHIRT"), nil, created)}}
	repo := NewClothesRepository(exec)

	item, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if item.ID != id || item.OwnerID != owner {
		t.Fatalf("identity mismatch: %+v", item)
	}
	if item.Category == nil || *item.Category != domain.CategoryShirt {
		t.Fatalf("category = %v, want SHIRT", item.Category)
	}
	if item.Color != "white" || item.Brand != "" || item.LastError != "" {
		t.Fatalf("nullable columns mismatch: %+v", item)
	}
	if item.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", item.Status)
	}
	if item.OriginalImage != "data:image/png;base64,AAAA" || item.DisplayImage != "data:image/png;base64,BBBB" {
		t.Fatalf("image columns swapped: %+v", item)
	}
	if !strings.HasPrefix(strings.TrimSpace(exec.calls[0].query), "--sql ") {
		t.Fatalf("query missing audit marker")
	}
}

func TestClothesRepositoryFindByIDNotFound(t *testing.T) {
	repo := NewClothesRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	if _, err := repo.FindByID(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestClothesRepositoryInsertAssignsIDAndTimestamps(t *testing.T) {
	now := time.Now().UTC()
	exec := &stubExecutor{row: stubRow{values: []any{now, now}}}
	repo := NewClothesRepository(exec)

	in := domain.NewPendingItem(uuid.New(), "data:image/png;base64,AAAA")
	out, err := repo.Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if out.ID == uuid.Nil {
		t.Fatalf("expected id to be assigned")
	}
	if !out.CreatedAt.Equal(now) || !out.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not scanned: %+v", out)
	}
	args := exec.calls[0].args
	if got := args[11]; got != "PENDING" {
		t.Fatalf("status arg = %v, want PENDING", got)
	}
	if got := args[12].(*string); got != nil {
		t.Fatalf("processing_error arg = %v, want nil", *got)
	}
	if got := args[3].(*string); got != nil {
		t.Fatalf("category arg = %v, want nil", *got)
	}
}

func TestClothesRepositoryUpdateMissingRow(t *testing.T) {
	repo := NewClothesRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	err := repo.Update(context.Background(), &domain.ClothingItem{ID: uuid.New(), Status: domain.StatusCompleted})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestClothesRepositoryUpdateWritesStatusAndError(t *testing.T) {
	now := time.Now().UTC()
	exec := &stubExecutor{row: stubRow{values: []any{now}}}
	repo := NewClothesRepository(exec)

	item := &domain.ClothingItem{ID: uuid.New(), Status: domain.StatusFailed, LastError: "boom"}
	if err := repo.Update(context.Background(), item); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	args := exec.calls[0].args
	if args[9] != "FAILED" {
		t.Fatalf("status arg = %v, want FAILED", args[9])
	}
	if got := args[10].(*string); got == nil || *got != "boom" {
		t.Fatalf("error arg mismatch: %v", got)
	}
	if !item.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt not refreshed")
	}
}

func TestClothesRepositoryDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "missing", affected: 0, wantErr: domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewClothesRepository(&stubExecutor{affected: tc.affected})
			err := repo.Delete(context.Background(), uuid.New())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Delete error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestClothesRepositoryFindByOwnerPassesCategory(t *testing.T) {
	owner := uuid.New()
	created := time.Now().UTC()
	rows := &stubRows{rows: [][]any{
		itemRow(uuid.New(), owner, "PENDING", strPtr("DRESS"), nil, created),
		itemRow(uuid.New(), owner, "FAILED", strPtr("DRESS"), strPtr("abandoned"), created.Add(-time.Minute)),
	}}
	exec := &stubExecutor{rows: rows}
	repo := NewClothesRepository(exec)

	cat := domain.CategoryDress
	items, err := repo.FindByOwner(context.Background(), owner, &cat)
	if err != nil {
		t.Fatalf("FindByOwner error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items len = %d, want 2", len(items))
	}
	if items[1].LastError != "abandoned" || items[1].Status != domain.StatusFailed {
		t.Fatalf("second item mismatch: %+v", items[1])
	}
	if got := exec.calls[0].args[1].(*string); got == nil || *got != "DRESS" {
		t.Fatalf("category arg mismatch: %v", got)
	}
	if !rows.closed {
		t.Fatalf("rows not closed")
	}
}

func TestClothesRepositoryMarkAbandoned(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	rows := &stubRows{rows: [][]any{{ids[0]}, {ids[1]}}}
	exec := &stubExecutor{rows: rows}
	repo := NewClothesRepository(exec)

	got, err := repo.MarkAbandoned(context.Background(), time.Now(), "abandoned")
	if err != nil {
		t.Fatalf("MarkAbandoned error: %v", err)
	}
	if len(got) != 2 || got[0] != ids[0] || got[1] != ids[1] {
		t.Fatalf("ids = %v, want %v", got, ids)
	}
	statuses := exec.calls[0].args[2].([]string)
	if len(statuses) != len(domain.NonTerminalStatuses) {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestClothesRepositoryResetForReprocess(t *testing.T) {
	id, owner := uuid.New(), uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rows       []pgx.Row
		wantErr    error
		wantStatus domain.ProcessingStatus
	}{
		{
			name:       "terminal item is reset",
			rows:       []pgx.Row{stubRow{values: itemRow(id, owner, "PENDING", nil, nil, created)}},
			wantStatus: domain.StatusPending,
		},
		{
			name: "running item conflicts",
			rows: []pgx.Row{
				stubRow{err: pgx.ErrNoRows},
				stubRow{values: itemRow(id, owner, "REMOVING_BACKGROUND", nil, nil, created)},
			},
			wantErr: domain.ErrConflict,
		},
		{
			name:    "missing item",
			rows:    []pgx.Row{stubRow{err: pgx.ErrNoRows}, stubRow{err: pgx.ErrNoRows}},
			wantErr: domain.ErrNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{queue: tc.rows}
			item, err := NewClothesRepository(exec).ResetForReprocess(context.Background(), id)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResetForReprocess error: %v", err)
			}
			if item.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", item.Status, tc.wantStatus)
			}
			statuses, ok := exec.calls[0].args[1].([]string)
			if !ok || !reflect.DeepEqual(statuses, []string{"COMPLETED", "FAILED"}) {
				t.Fatalf("terminal status arg = %v", exec.calls[0].args[1])
			}
		})
	}
}
