package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
)

// CreateProductInput holds the validated payload to create a product. Images
// are filled in from the multipart upload, never from the JSON body.
type CreateProductInput struct {
	Name             string                    `json:"name" validate:"required,max=100"`
	Description      string                    `json:"description" validate:"required,max=2000"`
	ShortDescription *string                   `json:"shortDescription,omitempty" validate:"omitempty,max=200"`
	Price            decimal.Decimal           `json:"price"`
	DiscountPrice    *decimal.Decimal          `json:"discountPrice,omitempty"`
	Category         enums.ProductCategory     `json:"category" validate:"required"`
	Tags             []string                  `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Stock            int                       `json:"stock" validate:"min=0"`
	SKU              *string                   `json:"sku,omitempty" validate:"omitempty,max=64"`
	Dimensions       *models.ProductDimensions `json:"dimensions,omitempty"`
	WeightGrams      *int                      `json:"weightGrams,omitempty" validate:"omitempty,min=0"`
	Colors           []string                  `json:"colors,omitempty"`
	Materials        []string                  `json:"materials,omitempty"`
	Care             *string                   `json:"care,omitempty" validate:"omitempty,max=1000"`
	Featured         bool                      `json:"featured"`
	IsNew            bool                      `json:"isNew"`
	Bestseller       bool                      `json:"bestseller"`
	IsActive         *bool                     `json:"isActive,omitempty"`
	MetaTitle        *string                   `json:"metaTitle,omitempty" validate:"omitempty,max=70"`
	MetaDescription  *string                   `json:"metaDescription,omitempty" validate:"omitempty,max=160"`
	Images           []models.ProductImage     `json:"-"`
}

// UpdateProductInput holds optional mutation values. A nil Images keeps the
// current gallery.
type UpdateProductInput struct {
	Name             *string                   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description      *string                   `json:"description,omitempty" validate:"omitempty,min=1,max=2000"`
	ShortDescription *string                   `json:"shortDescription,omitempty" validate:"omitempty,max=200"`
	Price            *decimal.Decimal          `json:"price,omitempty"`
	DiscountPrice    *decimal.Decimal          `json:"discountPrice,omitempty"`
	ClearDiscount    bool                      `json:"clearDiscount,omitempty"`
	Category         *enums.ProductCategory    `json:"category,omitempty"`
	Tags             *[]string                 `json:"tags,omitempty"`
	Stock            *int                      `json:"stock,omitempty" validate:"omitempty,min=0"`
	SKU              *string                   `json:"sku,omitempty" validate:"omitempty,max=64"`
	Dimensions       *models.ProductDimensions `json:"dimensions,omitempty"`
	WeightGrams      *int                      `json:"weightGrams,omitempty" validate:"omitempty,min=0"`
	Colors           *[]string                 `json:"colors,omitempty"`
	Materials        *[]string                 `json:"materials,omitempty"`
	Care             *string                   `json:"care,omitempty" validate:"omitempty,max=1000"`
	Featured         *bool                     `json:"featured,omitempty"`
	IsNew            *bool                     `json:"isNew,omitempty"`
	Bestseller       *bool                     `json:"bestseller,omitempty"`
	IsActive         *bool                     `json:"isActive,omitempty"`
	MetaTitle        *string                   `json:"metaTitle,omitempty" validate:"omitempty,max=70"`
	MetaDescription  *string                   `json:"metaDescription,omitempty" validate:"omitempty,max=160"`
	Images           *[]models.ProductImage    `json:"-"`
}

// StockInput adjusts stock by a signed quantity.
type StockInput struct {
	Quantity int `json:"quantity" validate:"required"`
}

// ProductDTO represents the catalog payload returned to clients.
type ProductDTO struct {
	ID                 uuid.UUID                 `json:"id"`
	Name               string                    `json:"name"`
	Slug               string                    `json:"slug"`
	Description        string                    `json:"description"`
	ShortDescription   *string                   `json:"shortDescription,omitempty"`
	Price              decimal.Decimal           `json:"price"`
	DiscountPrice      *decimal.Decimal          `json:"discountPrice,omitempty"`
	EffectivePrice     decimal.Decimal           `json:"effectivePrice"`
	DiscountPercentage int                       `json:"discountPercentage"`
	Category           enums.ProductCategory     `json:"category"`
	Tags               []string                  `json:"tags"`
	Stock              int                       `json:"stock"`
	StockStatus        enums.StockStatus         `json:"stockStatus"`
	SKU                *string                   `json:"sku,omitempty"`
	Dimensions         *models.ProductDimensions `json:"dimensions,omitempty"`
	WeightGrams        *int                      `json:"weightGrams,omitempty"`
	Colors             []string                  `json:"colors"`
	Materials          []string                  `json:"materials"`
	Care               *string                   `json:"care,omitempty"`
	Images             []models.ProductImage     `json:"images"`
	PrimaryImage       *models.ProductImage      `json:"primaryImage,omitempty"`
	Featured           bool                      `json:"featured"`
	IsNew              bool                      `json:"isNew"`
	Bestseller         bool                      `json:"bestseller"`
	IsActive           bool                      `json:"isActive"`
	AverageRating      float64                   `json:"averageRating"`
	RatingsQuantity    int                       `json:"ratingsQuantity"`
	Views              int                       `json:"views"`
	SoldCount          int                       `json:"soldCount"`
	MetaTitle          *string                   `json:"metaTitle,omitempty"`
	MetaDescription    *string                   `json:"metaDescription,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	images := append([]models.ProductImage{}, p.Images...)
	return &ProductDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Slug:               p.Slug,
		Description:        p.Description,
		ShortDescription:   p.ShortDescription,
		Price:              p.Price,
		DiscountPrice:      p.DiscountPrice,
		EffectivePrice:     p.EffectivePrice(),
		DiscountPercentage: p.DiscountPercentage(),
		Category:           p.Category,
		Tags:               append([]string{}, p.Tags...),
		Stock:              p.Stock,
		StockStatus:        enums.StockStatusFor(p.Stock),
		SKU:                p.SKU,
		Dimensions:         p.Dimensions,
		WeightGrams:        p.WeightGrams,
		Colors:             append([]string{}, p.Colors...),
		Materials:          append([]string{}, p.Materials...),
		Care:               p.Care,
		Images:             images,
		PrimaryImage:       p.PrimaryImage(),
		Featured:           p.Featured,
		IsNew:              p.IsNew,
		Bestseller:         p.Bestseller,
		IsActive:           p.IsActive,
		AverageRating:      p.AverageRating,
		RatingsQuantity:    p.RatingsQuantity,
		Views:              p.Views,
		SoldCount:          p.SoldCount,
		MetaTitle:          p.MetaTitle,
		MetaDescription:    p.MetaDescription,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out
}

// ProductSummary is the compact product shape embedded in cart and wishlist
// rows.
type ProductSummary struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Slug           string            `json:"slug"`
	Price          decimal.Decimal   `json:"price"`
	EffectivePrice decimal.Decimal   `json:"effectivePrice"`
	Stock          int               `json:"stock"`
	StockStatus    enums.StockStatus `json:"stockStatus"`
	Thumbnail      string            `json:"thumbnail,omitempty"`
	IsActive       bool              `json:"isActive"`
}

func NewProductSummary(p *models.Product) ProductSummary {
	summary := ProductSummary{
		ID:             p.ID,
		Name:           p.Name,
		Slug:           p.Slug,
		Price:          p.Price,
		EffectivePrice: p.EffectivePrice(),
		Stock:          p.Stock,
		StockStatus:    enums.StockStatusFor(p.Stock),
		IsActive:       p.IsActive,
	}
	if primary := p.PrimaryImage(); primary != nil {
		summary.Thumbnail = primary.URL
		if primary.Variants.Thumbnail != "" {
			summary.Thumbnail = primary.Variants.Thumbnail
		}
	}
	return summary
}
