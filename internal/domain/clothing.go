package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProcessingStatus enumerates the lifecycle states of a clothing item image.
type ProcessingStatus string

const (
	StatusPending            ProcessingStatus = "PENDING"
	StatusProcessing         ProcessingStatus = "PROCESSING"
	StatusProcessingAI       ProcessingStatus = "PROCESSING_AI"
	StatusRemovingBackground ProcessingStatus = "REMOVING_BACKGROUND"
	StatusCompleted          ProcessingStatus = "COMPLETED"
	StatusFailed             ProcessingStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// NonTerminalStatuses lists every state an in-flight or abandoned item can be in.
// PROCESSING is only ever read from older rows.
var NonTerminalStatuses = []ProcessingStatus{
	StatusPending,
	StatusProcessing,
	StatusProcessingAI,
	StatusRemovingBackground,
}

// Category is the closed set of garment kinds.
type Category string

const (
	CategoryShirt     Category = "SHIRT"
	CategoryTShirt    Category = "TSHIRT"
	CategoryPants     Category = "PANTS"
	CategoryShorts    Category = "SHORTS"
	CategorySkirt     Category = "SKIRT"
	CategoryDress     Category = "DRESS"
	CategoryJacket    Category = "JACKET"
	CategoryCoat      Category = "COAT"
	CategorySweater   Category = "SWEATER"
	CategoryShoes     Category = "SHOES"
	CategoryAccessory Category = "ACCESSORY"
	CategoryBag       Category = "BAG"
	CategoryOther     Category = "OTHER"
)

var knownCategories = map[Category]struct{}{
	CategoryShirt: {}, CategoryTShirt: {}, CategoryPants: {}, CategoryShorts: {},
	CategorySkirt: {}, CategoryDress: {}, CategoryJacket: {}, CategoryCoat: {},
	CategorySweater: {}, CategoryShoes: {}, CategoryAccessory: {}, CategoryBag: {},
	CategoryOther: {},
}

var upper = cases.Upper(language.Und)

// ParseCategory normalizes free-form input ("t-shirt", " Dress ") into a Category.
func ParseCategory(raw string) (Category, error) {
	normalized := upper.String(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "", " ", "", "_", "").Replace(normalized)
	c := Category(normalized)
	if _, ok := knownCategories[c]; !ok {
		return "", fmt.Errorf("%w: unsupported category %q", ErrValidation, raw)
	}
	return c, nil
}

// Defaults applied to freshly submitted items.
const (
	DefaultItemName = "New Item"
)

// ClothingItem represents one garment in a user's wardrobe together with the
// state of its image pipeline.
type ClothingItem struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	Category      *Category
	Color         string
	Brand         string
	Description   string
	IsPublic      bool
	IsFavorite    bool
	OriginalImage string
	DisplayImage  string
	Status        ProcessingStatus
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPendingItem builds an item that is waiting for the pipeline.
func NewPendingItem(ownerID uuid.UUID, image string) *ClothingItem {
	return &ClothingItem{
		OwnerID:       ownerID,
		Name:          DefaultItemName,
		IsPublic:      true,
		OriginalImage: image,
		DisplayImage:  image,
		Status:        StatusPending,
	}
}

// OwnedBy reports whether the requester may see or change the item.
func (c *ClothingItem) OwnedBy(userID uuid.UUID) bool {
	return c != nil && c.OwnerID == userID
}

// ItemDetails carries user-editable metadata. Nil fields are left untouched.
type ItemDetails struct {
	Name        *string
	Category    *Category
	Color       *string
	Brand       *string
	Description *string
	IsPublic    *bool
	IsFavorite  *bool
}

// Empty reports whether applying the details would change nothing.
func (d ItemDetails) Empty() bool {
	return d.Name == nil && d.Category == nil && d.Color == nil && d.Brand == nil &&
		d.Description == nil && d.IsPublic == nil && d.IsFavorite == nil
}

// Apply copies every present field onto the item.
func (d ItemDetails) Apply(item *ClothingItem) {
	if d.Name != nil {
		item.Name = *d.Name
	}
	if d.Category != nil {
		c := *d.Category
		item.Category = &c
	}
	if d.Color != nil {
		item.Color = *d.Color
	}
	if d.Brand != nil {
		item.Brand = *d.Brand
	}
	if d.Description != nil {
		item.Description = *d.Description
	}
	if d.IsPublic != nil {
		item.IsPublic = *d.IsPublic
	}
	if d.IsFavorite != nil {
		item.IsFavorite = *d.IsFavorite
	}
}
