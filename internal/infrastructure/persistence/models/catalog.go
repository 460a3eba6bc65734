package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/souq/backend/internal/domain/catalog"
	"github.com/souq/backend/internal/domain/integration"
)

// ProductModel is the persistence model for the Product domain entity.
// (merchant_id, platform, external_id) is the upsert key and slug is unique across the marketplace.
type ProductModel struct {
	BaseModel
	MerchantID    uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_product_merchant_platform_external,priority:1"`
	Platform      integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_product_merchant_platform_external,priority:2"`
	ExternalID    string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_merchant_platform_external,priority:3"`
	Slug          string                   `gorm:"type:varchar(255);not null;uniqueIndex:idx_product_slug"`
	Title         string                   `gorm:"type:varchar(500);not null"`
	TitleAr       string                   `gorm:"type:varchar(500)"`
	Description   string                   `gorm:"type:text"`
	Price         decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Currency      string                   `gorm:"type:varchar(3);not null;default:'SAR'"`
	Images        []string                 `gorm:"type:jsonb;serializer:json"`
	Thumbnail     string                   `gorm:"type:varchar(1000)"`
	StockQuantity *int                     `gorm:"column:stock_quantity"`
	IsActive      bool                     `gorm:"not null"`
	InStock       bool                     `gorm:"not null"`
	CategoryID    *uuid.UUID               `gorm:"type:uuid;index"`
	ExternalURL   string                   `gorm:"type:varchar(1000)"`
	TrendingScore float64                  `gorm:"not null;default:0;index"`
	ViewCount     int64                    `gorm:"not null;default:0"`
	ClickCount    int64                    `gorm:"not null;default:0"`
	OrderCount    int64                    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseEntity:    m.BaseModel.Entity(),
		MerchantID:    m.MerchantID,
		Platform:      m.Platform,
		ExternalID:    m.ExternalID,
		Slug:          m.Slug,
		Title:         m.Title,
		TitleAr:       m.TitleAr,
		Description:   m.Description,
		Price:         m.Price,
		Currency:      m.Currency,
		Images:        m.Images,
		Thumbnail:     m.Thumbnail,
		StockQuantity: m.StockQuantity,
		IsActive:      m.IsActive,
		InStock:       m.InStock,
		CategoryID:    m.CategoryID,
		ExternalURL:   m.ExternalURL,
		TrendingScore: m.TrendingScore,
		ViewCount:     m.ViewCount,
		ClickCount:    m.ClickCount,
		OrderCount:    m.OrderCount,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.SetEntity(p.BaseEntity)
	m.MerchantID = p.MerchantID
	m.Platform = p.Platform
	m.ExternalID = p.ExternalID
	m.Slug = p.Slug
	m.Title = p.Title
	m.TitleAr = p.TitleAr
	m.Description = p.Description
	m.Price = p.Price
	m.Currency = p.Currency
	m.Images = p.Images
	m.Thumbnail = p.Thumbnail
	m.StockQuantity = p.StockQuantity
	m.IsActive = p.IsActive
	m.InStock = p.InStock
	m.CategoryID = p.CategoryID
	m.ExternalURL = p.ExternalURL
	m.TrendingScore = p.TrendingScore
	m.ViewCount = p.ViewCount
	m.ClickCount = p.ClickCount
	m.OrderCount = p.OrderCount
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	BaseModel
	MerchantID uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_category_merchant_platform_external,priority:1;uniqueIndex:idx_category_merchant_platform_slug,priority:1"`
	Platform   integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_category_merchant_platform_external,priority:2;uniqueIndex:idx_category_merchant_platform_slug,priority:2"`
	ExternalID string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_category_merchant_platform_external,priority:3"`
	Name       string                   `gorm:"type:varchar(200);not null"`
	NameAr     string                   `gorm:"type:varchar(200)"`
	Slug       string                   `gorm:"type:varchar(255);not null;uniqueIndex:idx_category_merchant_platform_slug,priority:3"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseEntity: m.BaseModel.Entity(),
		MerchantID: m.MerchantID,
		Platform:   m.Platform,
		ExternalID: m.ExternalID,
		Name:       m.Name,
		NameAr:     m.NameAr,
		Slug:       m.Slug,
	}
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.SetEntity(c.BaseEntity)
	m.MerchantID = c.MerchantID
	m.Platform = c.Platform
	m.ExternalID = c.ExternalID
	m.Name = c.Name
	m.NameAr = c.NameAr
	m.Slug = c.Slug
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{}
	m.FromDomain(c)
	return m
}
