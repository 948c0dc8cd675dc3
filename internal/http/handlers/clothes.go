package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wardrobe/internal/domain"
	"wardrobe/internal/middleware"
	"wardrobe/internal/wardrobe"
)

// decode reads a JSON body bounded by MaxUploadBytes and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := io.Reader(r.Body)
	if a.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "bad_request", fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit))
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", validationDetails(err))
		return false
	}
	return true
}

func (a *App) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func (a *App) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid clothing id")
		return uuid.Nil, false
	}
	return id, true
}

// ClothesUpload handles POST /clothes/upload.
func (a *App) ClothesUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var req uploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	item, err := a.Service.Upload(r.Context(), owner, req.ImageBase64, req.ProcessWithAI)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newItemResponse(item))
}

// ClothesUploadBatch handles POST /clothes/upload/batch.
func (a *App) ClothesUploadBatch(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var req batchUploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	items, err := a.Service.UploadBatch(r.Context(), owner, req.ImagesBase64, req.ProcessWithAI)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newBatchResponse(items))
}

// ClothesUploadAdvanced handles POST /clothes/upload/batch-advanced.
func (a *App) ClothesUploadAdvanced(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var req advancedUploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	subs := make([]wardrobe.Submission, len(req.Items))
	for i, it := range req.Items {
		details, err := it.toDetails()
		if err != nil {
			a.writeServiceError(w, r, itemIndexError(i, err))
			return
		}
		subs[i] = wardrobe.Submission{Image: it.ImageBase64, Details: details}
	}
	items, err := a.Service.SubmitAdvanced(r.Context(), owner, subs, req.ProcessWithAI)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newBatchResponse(items))
}

// ClothesStatus handles GET /clothes/status/{id}.
func (a *App) ClothesStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := a.itemID(w, r)
	if !ok {
		return
	}
	item, err := a.Service.Get(r.Context(), owner, id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newItemResponse(item))
}

// ClothesList handles GET /clothes.
func (a *App) ClothesList(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var category *domain.Category
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		c, err := domain.ParseCategory(raw)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		category = &c
	}
	items, err := a.Service.List(r.Context(), owner, category)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = newItemResponse(&items[i])
	}
	a.json(w, http.StatusOK, out)
}

// ClothesUpdate handles PATCH /clothes/update/{id}.
func (a *App) ClothesUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := a.itemID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ClothingPictureURL != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "clothingPictureUrl is set by the processing pipeline")
		return
	}
	details, err := req.toDetails()
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	item, err := a.Service.Update(r.Context(), owner, id, details)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newItemResponse(item))
}

// ClothesDelete handles DELETE /clothes/{id}.
func (a *App) ClothesDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := a.itemID(w, r)
	if !ok {
		return
	}
	if err := a.Service.Delete(r.Context(), owner, id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Clothing item deleted successfully"})
}

// ClothesAdd handles POST /clothes/add.
func (a *App) ClothesAdd(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var req addRequest
	if !a.decode(w, r, &req) {
		return
	}
	details, err := req.toDetails()
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	item, err := a.Service.Add(r.Context(), owner, req.ClothingPictureURL, details)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newItemResponse(item))
}

// ClothesReprocess handles POST /clothes/{id}/reprocess.
func (a *App) ClothesReprocess(w http.ResponseWriter, r *http.Request) {
	owner, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := a.itemID(w, r)
	if !ok {
		return
	}
	var req reprocessRequest
	if r.ContentLength != 0 && !a.decode(w, r, &req) {
		return
	}
	item, err := a.Service.Reprocess(r.Context(), owner, id, req.ProcessWithAI)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, newItemResponse(item))
}
