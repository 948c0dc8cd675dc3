package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wardrobe/internal/adapter/repo"
	"wardrobe/internal/domain"
	"wardrobe/internal/imageprep"
	"wardrobe/internal/middleware"
	"wardrobe/internal/pipeline"
	"wardrobe/internal/wardrobe"
)

type stubScheduler struct {
	full       bool
	dispatched []uuid.UUID
}

func (s *stubScheduler) Reserve(n int) error {
	if s.full {
		return pipeline.ErrQueueFull
	}
	return nil
}

func (s *stubScheduler) Release(int) {}

func (s *stubScheduler) Dispatch(ids []uuid.UUID, enhance bool) {
	s.dispatched = append(s.dispatched, ids...)
}

func (s *stubScheduler) Stats() pipeline.Stats { return pipeline.Stats{Workers: 4, Capacity: 64} }

var testImage = imageprep.Payload{MIME: "image/png", Data: []byte("\x89PNG\r\n\x1a\nxxxx")}.DataURI()

type harness struct {
	router http.Handler
	store  *repo.ClothesRepositoryMemory
	sched  *stubScheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repo.NewMemoryClothesRepository()
	sched := &stubScheduler{}
	svc := wardrobe.NewService(store, sched, 3, zerolog.Nop())
	app := NewApp(svc, sched, zerolog.Nop(), 1<<20)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Test-User"); raw != "" {
				r = r.WithContext(middleware.ContextWithUserID(r.Context(), uuid.MustParse(raw)))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/healthz", app.Health)
	r.Get("/clothes", app.ClothesList)
	r.Post("/clothes/add", app.ClothesAdd)
	r.Post("/clothes/upload", app.ClothesUpload)
	r.Post("/clothes/upload/batch", app.ClothesUploadBatch)
	r.Post("/clothes/upload/batch-advanced", app.ClothesUploadAdvanced)
	r.Get("/clothes/status/{id}", app.ClothesStatus)
	r.Patch("/clothes/update/{id}", app.ClothesUpdate)
	r.Delete("/clothes/{id}", app.ClothesDelete)
	r.Post("/clothes/{id}/reprocess", app.ClothesReprocess)
	return &harness{router: r, store: store, sched: sched}
}

func (h *harness) do(t *testing.T, method, path string, user uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestClothesUpload(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	rec := h.do(t, http.MethodPost, "/clothes/upload", user, map[string]any{"imageBase64": testImage, "processWithAI": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	item := decodeBody[itemResponse](t, rec)
	if item.ProcessingStatus != string(domain.StatusPending) || item.Name != domain.DefaultItemName {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.ClothingPictureURL != testImage || item.OriginalImageURL != testImage {
		t.Fatalf("images not echoed")
	}
	if item.Category != nil || item.ProcessingError != nil {
		t.Fatalf("category/error should be null: %s", rec.Body.String())
	}
	if len(h.sched.dispatched) != 1 || h.sched.dispatched[0].String() != item.ID {
		t.Fatalf("item not scheduled")
	}
}

func TestClothesUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		user     uuid.UUID
		body     any
		full     bool
		wantCode int
		wantErr  string
	}{
		{name: "no user", body: map[string]any{"imageBase64": testImage}, wantCode: http.StatusUnauthorized, wantErr: "unauthorized"},
		{name: "malformed json", user: uuid.New(), body: "{", wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "missing image", user: uuid.New(), body: map[string]any{"processWithAI": true}, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "not an image", user: uuid.New(), body: map[string]any{"imageBase64": "data:text/plain;base64,aGk="}, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "queue full", user: uuid.New(), body: map[string]any{"imageBase64": testImage}, full: true, wantCode: http.StatusServiceUnavailable, wantErr: "unavailable"},
		{name: "too large", user: uuid.New(), body: map[string]any{"imageBase64": strings.Repeat("A", 2<<20)}, wantCode: http.StatusRequestEntityTooLarge, wantErr: "bad_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.sched.full = tc.full
			rec := h.do(t, http.MethodPost, "/clothes/upload", tc.user, tc.body)
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d want %d body %s", rec.Code, tc.wantCode, rec.Body.String())
			}
			if got := decodeBody[errorResponse](t, rec); got.Error != tc.wantErr {
				t.Fatalf("error = %q want %q", got.Error, tc.wantErr)
			}
		})
	}
}

func TestClothesUploadBatch(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	rec := h.do(t, http.MethodPost, "/clothes/upload/batch", user, map[string]any{"imagesBase64": []string{testImage, testImage}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[batchUploadResponse](t, rec)
	if resp.TotalUploaded != 2 || len(resp.ClothingIDs) != 2 || resp.Message != "Upload successful" {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = h.do(t, http.MethodPost, "/clothes/upload/batch", user, map[string]any{"imagesBase64": []string{testImage, testImage, testImage, testImage}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized batch status = %d", rec.Code)
	}
	rec = h.do(t, http.MethodPost, "/clothes/upload/batch", user, map[string]any{"imagesBase64": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d", rec.Code)
	}
}

func TestClothesUploadAdvanced(t *testing.T) {
	h := newHarness(t)
	user := uuid.New()

	rec := h.do(t, http.MethodPost, "/clothes/upload/batch-advanced", user, map[string]any{
		"processWithAI": false,
		"items": []map[string]any{
			{"imageBase64": testImage, "name": "Linen shirt", "category": "shirt", "isPublic": false},
			{"imageBase64": testImage, "category": "t-shirt"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[batchUploadResponse](t, rec)
	first, err := h.store.FindByID(context.Background(), uuid.MustParse(resp.ClothingIDs[0]))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if first.Name != "Linen shirt" || first.Category == nil || *first.Category != domain.CategoryShirt || first.IsPublic {
		t.Fatalf("metadata not stored: %+v", first)
	}

	rec = h.do(t, http.MethodPost, "/clothes/upload/batch-advanced", user, map[string]any{
		"items": []map[string]any{{"imageBase64": testImage, "category": "hat"}},
	})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "items[0]") {
		t.Fatalf("unknown category: status %d body %s", rec.Code, rec.Body.String())
	}
}

func seed(t *testing.T, h *harness, owner uuid.UUID) *domain.ClothingItem {
	t.Helper()
	item, err := h.store.Insert(context.Background(), domain.NewPendingItem(owner, testImage))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return item
}

func TestClothesStatusOwnership(t *testing.T) {
	h := newHarness(t)
	owner, other := uuid.New(), uuid.New()
	item := seed(t, h, owner)

	tests := []struct {
		name string
		user uuid.UUID
		path string
		want int
	}{
		{name: "owner", user: owner, path: "/clothes/status/" + item.ID.String(), want: http.StatusOK},
		{name: "other user", user: other, path: "/clothes/status/" + item.ID.String(), want: http.StatusForbidden},
		{name: "missing", user: owner, path: "/clothes/status/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "bad id", user: owner, path: "/clothes/status/not-a-uuid", want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, tc.path, tc.user, nil)
			if rec.Code != tc.want {
				t.Fatalf("status = %d want %d body %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestClothesStatusReportsFailure(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	item := seed(t, h, owner)
	item.Status = domain.StatusFailed
	item.LastError = "abandoned"
	if err := h.store.Update(context.Background(), item); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec := h.do(t, http.MethodGet, "/clothes/status/"+item.ID.String(), owner, nil)
	got := decodeBody[itemResponse](t, rec)
	if got.ProcessingStatus != "FAILED" || got.ProcessingError == nil || *got.ProcessingError != "abandoned" {
		t.Fatalf("unexpected status payload %s", rec.Body.String())
	}
}

func TestClothesUpdate(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	item := seed(t, h, owner)
	path := "/clothes/update/" + item.ID.String()

	rec := h.do(t, http.MethodPatch, path, owner, map[string]any{"name": "Wool coat", "category": "COAT", "isFavorite": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[itemResponse](t, rec)
	if got.Name != "Wool coat" || got.Category == nil || *got.Category != "COAT" || !got.IsFavorite {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.ProcessingStatus != string(domain.StatusPending) {
		t.Fatalf("status changed by patch: %s", got.ProcessingStatus)
	}

	rec = h.do(t, http.MethodPatch, path, owner, map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("empty patch status = %d", rec.Code)
	}

	rec = h.do(t, http.MethodPatch, path, owner, map[string]any{"clothingPictureUrl": "data:image/png;base64,AAAA"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("picture patch status = %d", rec.Code)
	}
	rec = h.do(t, http.MethodPatch, path, owner, map[string]any{"category": "spaceship"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad category status = %d", rec.Code)
	}
	rec = h.do(t, http.MethodPatch, path, uuid.New(), map[string]any{"name": "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-owner patch status = %d", rec.Code)
	}
}

func TestClothesDelete(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	item := seed(t, h, owner)
	path := "/clothes/" + item.ID.String()

	if rec := h.do(t, http.MethodDelete, path, uuid.New(), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cross-owner delete status = %d", rec.Code)
	}
	if rec := h.do(t, http.MethodDelete, path, owner, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := h.do(t, http.MethodDelete, path, owner, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestClothesListAndAdd(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	rec := h.do(t, http.MethodPost, "/clothes/add", owner, map[string]any{
		"clothingPictureUrl": testImage, "name": "Boots", "category": "shoes",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[itemResponse](t, rec); got.ProcessingStatus != "COMPLETED" {
		t.Fatalf("added item status = %s", got.ProcessingStatus)
	}
	seed(t, h, owner)
	seed(t, h, uuid.New())

	rec = h.do(t, http.MethodGet, "/clothes", owner, nil)
	if list := decodeBody[[]itemResponse](t, rec); len(list) != 2 {
		t.Fatalf("list len = %d want 2", len(list))
	}
	rec = h.do(t, http.MethodGet, "/clothes?category=SHOES", owner, nil)
	if list := decodeBody[[]itemResponse](t, rec); len(list) != 1 || list[0].Name != "Boots" {
		t.Fatalf("filtered list = %s", rec.Body.String())
	}
	if rec := h.do(t, http.MethodGet, "/clothes?category=rocket", owner, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPost, "/clothes/add", owner, map[string]any{"name": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("add without picture status = %d", rec.Code)
	}
}

func TestClothesReprocess(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	item := seed(t, h, owner)
	path := "/clothes/" + item.ID.String() + "/reprocess"

	if rec := h.do(t, http.MethodPost, path, owner, map[string]any{"processWithAI": true}); rec.Code != http.StatusConflict {
		t.Fatalf("reprocess pending status = %d", rec.Code)
	}

	item.Status = domain.StatusCompleted
	if err := h.store.Update(context.Background(), item); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec := h.do(t, http.MethodPost, path, owner, map[string]any{"processWithAI": true})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("reprocess status = %d body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[itemResponse](t, rec); got.ProcessingStatus != "PENDING" {
		t.Fatalf("reprocessed status = %s", got.ProcessingStatus)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", uuid.Nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"workers":4`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}
