package handlers

import (
	"fmt"
	"time"

	"wardrobe/internal/domain"
)

type uploadRequest struct {
	ImageBase64   string `json:"imageBase64" validate:"required"`
	ProcessWithAI bool   `json:"processWithAI"`
}

type batchUploadRequest struct {
	ImagesBase64  []string `json:"imagesBase64" validate:"required,min=1,dive,required"`
	ProcessWithAI bool     `json:"processWithAI"`
}

// itemFields are the user-editable attributes shared by several requests.
type itemFields struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Category    *string `json:"category" validate:"omitempty,max=32"`
	Color       *string `json:"color" validate:"omitempty,max=64"`
	Brand       *string `json:"brand" validate:"omitempty,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsPublic    *bool   `json:"isPublic"`
	IsFavorite  *bool   `json:"isFavorite"`
}

type advancedItemRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
	itemFields
}

type advancedUploadRequest struct {
	Items         []advancedItemRequest `json:"items" validate:"required,min=1,dive"`
	ProcessWithAI bool                  `json:"processWithAI"`
}

type updateRequest struct {
	itemFields
	ClothingPictureURL *string `json:"clothingPictureUrl"`
}

type addRequest struct {
	ClothingPictureURL string `json:"clothingPictureUrl" validate:"required"`
	itemFields
}

type reprocessRequest struct {
	ProcessWithAI bool `json:"processWithAI"`
}

type batchUploadResponse struct {
	ClothingIDs   []string `json:"clothingIds"`
	Message       string   `json:"message"`
	TotalUploaded int      `json:"totalUploaded"`
}

type itemResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Category           *string `json:"category"`
	Color              string  `json:"color,omitempty"`
	Brand              string  `json:"brand,omitempty"`
	Description        string  `json:"description,omitempty"`
	ClothingPictureURL string  `json:"clothingPictureUrl"`
	OriginalImageURL   string  `json:"originalImageUrl"`
	IsPublic           bool    `json:"isPublic"`
	IsFavorite         bool    `json:"isFavorite"`
	ProcessingStatus   string  `json:"processingStatus"`
	ProcessingError    *string `json:"processingError"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// toDetails converts request fields into domain edits, normalising the category.
func (f itemFields) toDetails() (domain.ItemDetails, error) {
	details := domain.ItemDetails{
		Name:        f.Name,
		Color:       f.Color,
		Brand:       f.Brand,
		Description: f.Description,
		IsPublic:    f.IsPublic,
		IsFavorite:  f.IsFavorite,
	}
	if f.Category != nil {
		c, err := domain.ParseCategory(*f.Category)
		if err != nil {
			return domain.ItemDetails{}, err
		}
		details.Category = &c
	}
	return details, nil
}

func newItemResponse(item *domain.ClothingItem) itemResponse {
	resp := itemResponse{
		ID:                 item.ID.String(),
		Name:               item.Name,
		Color:              item.Color,
		Brand:              item.Brand,
		Description:        item.Description,
		ClothingPictureURL: item.DisplayImage,
		OriginalImageURL:   item.OriginalImage,
		IsPublic:           item.IsPublic,
		IsFavorite:         item.IsFavorite,
		ProcessingStatus:   string(item.Status),
		CreatedAt:          item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.Category != nil {
		c := string(*item.Category)
		resp.Category = &c
	}
	if item.LastError != "" {
		e := item.LastError
		resp.ProcessingError = &e
	}
	return resp
}

func newBatchResponse(items []*domain.ClothingItem) batchUploadResponse {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID.String()
	}
	return batchUploadResponse{
		ClothingIDs:   ids,
		Message:       "Upload successful",
		TotalUploaded: len(ids),
	}
}

func itemIndexError(i int, err error) error {
	return fmt.Errorf("items[%d]: %w", i, err)
}
