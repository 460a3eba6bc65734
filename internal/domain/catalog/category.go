package catalog

import (
	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/integration"
	"github.com/souq/backend/internal/domain/shared"
)

var ErrCategoryNotFound = shared.NewDomainError("CATEGORY_NOT_FOUND", "Category not found")

// Category is an external category. Its slug is unique within a merchant's platform only.
type Category struct {
	shared.BaseEntity
	MerchantID uuid.UUID
	Platform   integration.PlatformCode
	ExternalID string
	Name       string
	NameAr     string
	Slug       string
}

// NewCategory creates a category from its normalized external form
func NewCategory(merchantID uuid.UUID, platform integration.PlatformCode, ext *integration.ExternalCategory) *Category {
	c := &Category{
		BaseEntity: shared.NewBaseEntity(),
		MerchantID: merchantID,
		Platform:   platform,
		ExternalID: ext.ExternalID,
		Slug:       CategorySlug(ext.Name, ext.ExternalID),
	}
	c.ApplyExternal(ext)
	return c
}

// ApplyExternal copies names and reports whether anything changed
func (c *Category) ApplyExternal(ext *integration.ExternalCategory) bool {
	nameAr := ""
	if ext.NameAr != nil {
		nameAr = *ext.NameAr
	}
	if c.Name == ext.Name && c.NameAr == nameAr {
		return false
	}
	c.Name = ext.Name
	c.NameAr = nameAr
	c.Touch()
	return true
}
