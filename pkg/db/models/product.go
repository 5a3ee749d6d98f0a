package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/enums"
)

// ImageVariants are the resized renditions of one stored image.
type ImageVariants struct {
	Thumbnail string `json:"thumbnail,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Large     string `json:"large,omitempty"`
	Original  string `json:"original,omitempty"`
}

// ProductImage is one entry of the ordered product gallery.
type ProductImage struct {
	URL       string        `json:"url"`
	PublicID  string        `json:"publicId,omitempty"`
	IsPrimary bool          `json:"isPrimary"`
	Alt       string        `json:"alt"`
	Variants  ImageVariants `json:"variants"`
}

// ProductDimensions are stored in centimetres.
type ProductDimensions struct {
	Length *float64 `json:"length,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name             string                `gorm:"column:name;not null"`
	Slug             string                `gorm:"column:slug;not null;uniqueIndex:ux_products_slug"`
	Description      string                `gorm:"column:description;not null"`
	ShortDescription *string               `gorm:"column:short_description"`
	Price            decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice    *decimal.Decimal      `gorm:"column:discount_price;type:numeric(12,2)"`
	Category         enums.ProductCategory `gorm:"column:category;type:text;not null;index:idx_products_category"`
	Tags             pq.StringArray        `gorm:"column:tags;type:text[]"`
	Stock            int                   `gorm:"column:stock;not null;default:0"`
	SKU              *string               `gorm:"column:sku"`
	Dimensions       *ProductDimensions    `gorm:"column:dimensions;type:jsonb;serializer:json"`
	WeightGrams      *int                  `gorm:"column:weight_grams"`
	Colors           pq.StringArray        `gorm:"column:colors;type:text[]"`
	Materials        pq.StringArray        `gorm:"column:materials;type:text[]"`
	Care             *string               `gorm:"column:care"`
	Images           []ProductImage        `gorm:"column:images;type:jsonb;serializer:json"`
	Featured         bool                  `gorm:"column:featured;not null;default:false"`
	IsNew            bool                  `gorm:"column:is_new;not null;default:false"`
	Bestseller       bool                  `gorm:"column:bestseller;not null;default:false"`
	IsActive         bool                  `gorm:"column:is_active;not null;default:true"`
	AverageRating    float64               `gorm:"column:average_rating;not null;default:0"`
	RatingsQuantity  int                   `gorm:"column:ratings_quantity;not null;default:0"`
	Views            int                   `gorm:"column:views;not null;default:0"`
	SoldCount        int                   `gorm:"column:sold_count;not null;default:0"`
	MetaTitle        *string               `gorm:"column:meta_title"`
	MetaDescription  *string               `gorm:"column:meta_description"`
	CreatedBy        *uuid.UUID            `gorm:"column:created_by;type:uuid"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	return ensureID(&p.ID)
}

// BeforeSave repairs the primary image flag on every write that carries the
// gallery.
func (p *Product) BeforeSave(*gorm.DB) error {
	p.Images = NormalizePrimaryImage(p.Images)
	return nil
}

// EffectivePrice is the discount price when present, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

// DiscountPercentage is rounded to the nearest whole percent.
func (p *Product) DiscountPercentage() int {
	if p.DiscountPrice == nil || !p.Price.IsPositive() {
		return 0
	}
	off := p.Price.Sub(*p.DiscountPrice).Div(p.Price).Mul(decimal.NewFromInt(100))
	return int(off.Round(0).IntPart())
}

// PrimaryImage returns the flagged image, or nil for an empty gallery.
func (p *Product) PrimaryImage() *ProductImage {
	for i := range p.Images {
		if p.Images[i].IsPrimary {
			return &p.Images[i]
		}
	}
	return nil
}

// NormalizePrimaryImage guarantees exactly one primary image in a non-empty
// gallery: the first flagged entry wins, otherwise the first entry.
func NormalizePrimaryImage(images []ProductImage) []ProductImage {
	if len(images) == 0 {
		return images
	}
	primary := -1
	for i := range images {
		if images[i].IsPrimary {
			if primary == -1 {
				primary = i
				continue
			}
			images[i].IsPrimary = false
		}
	}
	if primary == -1 {
		images[0].IsPrimary = true
	}
	for i := range images {
		if images[i].Alt == "" {
			images[i].Alt = DefaultImageAlt
		}
	}
	return images
}

const DefaultImageAlt = "Product image"
