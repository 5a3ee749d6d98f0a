package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/pagination"
)

const (
	defaultFeaturedLimit = 10
	defaultRelatedLimit  = 4
	maxShowcaseLimit     = 50
)

// Service exposes catalog reads for the storefront and admin mutations.
type Service interface {
	List(ctx context.Context, input ListInput) (*ProductList, error)
	Featured(ctx context.Context, limit int) ([]ProductDTO, error)
	Get(ctx context.Context, idOrSlug string) (*ProductDTO, error)
	Related(ctx context.Context, id uuid.UUID, limit int) ([]ProductDTO, error)
	Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*ProductDTO, error)
}

// ImageCleaner removes stored renditions of gallery images that are no longer
// referenced.
type ImageCleaner interface {
	RemoveImages(ctx context.Context, images []models.ProductImage) error
}

type ServiceParams struct {
	DB     *db.Client
	Images ImageCleaner
	Logger *logger.Logger
}

type service struct {
	repo   *Repository
	db     *db.Client
	images ImageCleaner
	logg   *logger.Logger
}

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		repo:   NewRepository(params.DB.DB()),
		db:     params.DB,
		images: params.Images,
		logg:   params.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ProductList, error) {
	if err := validatePriceRange(input.Filters); err != nil {
		return nil, err
	}
	if input.Filters.Category != nil && !input.Filters.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Category must be one of: Tumblers, Ceramics")
	}

	sort := input.Sort
	if sort == "" {
		sort = enums.ProductSortNewest
	}
	if !sort.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid sort %q", sort))
	}

	if sort == enums.ProductSortNewest {
		if _, err := pagination.ParseCursor(input.Cursor.Cursor); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		rows, next, err := s.repo.ListNewest(ctx, input.Filters, input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
		}
		return &ProductList{Products: toDTOs(rows), NextCursor: next}, nil
	}

	rows, total, err := s.repo.ListSorted(ctx, input.Filters, sort, input.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	meta := pagination.MetaFor(input.Page, total)
	return &ProductList{Products: toDTOs(rows), Meta: &meta}, nil
}

func (s *service) Featured(ctx context.Context, limit int) ([]ProductDTO, error) {
	rows, err := s.repo.Featured(ctx, clampLimit(limit, defaultFeaturedLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	return toDTOs(rows), nil
}

// Get resolves a uuid as an id and anything else as a slug. Slugs only match
// active products. Each hit counts one view.
func (s *service) Get(ctx context.Context, idOrSlug string) (*ProductDTO, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return nil, ErrProductNotFound()
	}

	var (
		product *models.Product
		err     error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		product, err = s.repo.FindByID(ctx, id)
	} else {
		product, err = s.repo.FindActiveBySlug(ctx, strings.ToLower(key))
	}
	if err != nil {
		return nil, mapLookupError(err)
	}

	if err := s.repo.IncrementViews(ctx, product.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count product view")
	}
	product.Views++
	return NewProductDTO(product), nil
}

func (s *service) Related(ctx context.Context, id uuid.UUID, limit int) ([]ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	rows, err := s.repo.Related(ctx, product, clampLimit(limit, defaultRelatedLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list related products")
	}
	return toDTOs(rows), nil
}

// Create requires at least one uploaded image; the first flagged image, or
// the first image, becomes primary.
func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error) {
	if len(input.Images) == 0 {
		return nil, ErrImageRequired()
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Category must be one of: Tumblers, Ceramics")
	}
	if err := validatePricing(input.Price, input.DiscountPrice); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Stock cannot be negative")
	}

	name := strings.TrimSpace(input.Name)
	slug, err := slugFor(name)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:             name,
		Slug:             slug,
		Description:      strings.TrimSpace(input.Description),
		ShortDescription: input.ShortDescription,
		Price:            input.Price.Round(2),
		DiscountPrice:    roundedPtr(input.DiscountPrice),
		Category:         input.Category,
		Tags:             cleanTags(input.Tags),
		Stock:            input.Stock,
		SKU:              input.SKU,
		Dimensions:       input.Dimensions,
		WeightGrams:      input.WeightGrams,
		Colors:           cleanTags(input.Colors),
		Materials:        cleanTags(input.Materials),
		Care:             input.Care,
		Images:           withAlt(input.Images, name),
		Featured:         input.Featured,
		IsNew:            input.IsNew,
		Bestseller:       input.Bestseller,
		IsActive:         input.IsActive == nil || *input.IsActive,
		MetaTitle:        input.MetaTitle,
		MetaDescription:  input.MetaDescription,
		CreatedBy:        actor.Ref(),
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if isSlugConflict(err) {
			return nil, ErrSlugTaken(slug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}
	s.info(ctx, product, "product.created")
	return NewProductDTO(product), nil
}

// Update patches the product. New images replace the gallery; the replaced
// renditions are removed from the object store after the write commits.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	var (
		product  *models.Product
		replaced []models.ProductImage
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		current, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}

		replaced, err = applyUpdate(current, input)
		if err != nil {
			return err
		}
		if err := txRepo.Save(ctx, current); err != nil {
			if isSlugConflict(err) {
				return ErrSlugTaken(current.Slug)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		product = current
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	s.cleanup(ctx, replaced)
	s.info(ctx, product, "product.updated")
	return NewProductDTO(product), nil
}

// Deactivate hides the product from the storefront; the row and its images
// stay for historical orders.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*ProductDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be zero")
	}
	var product *models.Product
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.AdjustStock(ctx, id, delta); err != nil {
			return mapLookupError(err)
		}
		loaded, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

func applyUpdate(p *models.Product, in UpdateProductInput) ([]models.ProductImage, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != p.Name {
			slug, err := slugFor(name)
			if err != nil {
				return nil, err
			}
			p.Name = name
			p.Slug = slug
		}
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.ShortDescription != nil {
		p.ShortDescription = in.ShortDescription
	}
	if in.Category != nil {
		if !in.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Category must be one of: Tumblers, Ceramics")
		}
		p.Category = *in.Category
	}

	price := p.Price
	if in.Price != nil {
		price = in.Price.Round(2)
	}
	discount := p.DiscountPrice
	switch {
	case in.ClearDiscount:
		discount = nil
	case in.DiscountPrice != nil:
		discount = roundedPtr(in.DiscountPrice)
	}
	if err := validatePricing(price, discount); err != nil {
		return nil, err
	}
	p.Price = price
	p.DiscountPrice = discount

	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Stock cannot be negative")
		}
		p.Stock = *in.Stock
	}
	if in.Tags != nil {
		p.Tags = cleanTags(*in.Tags)
	}
	if in.Colors != nil {
		p.Colors = cleanTags(*in.Colors)
	}
	if in.Materials != nil {
		p.Materials = cleanTags(*in.Materials)
	}
	if in.SKU != nil {
		p.SKU = in.SKU
	}
	if in.Dimensions != nil {
		p.Dimensions = in.Dimensions
	}
	if in.WeightGrams != nil {
		p.WeightGrams = in.WeightGrams
	}
	if in.Care != nil {
		p.Care = in.Care
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.IsNew != nil {
		p.IsNew = *in.IsNew
	}
	if in.Bestseller != nil {
		p.Bestseller = *in.Bestseller
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.MetaTitle != nil {
		p.MetaTitle = in.MetaTitle
	}
	if in.MetaDescription != nil {
		p.MetaDescription = in.MetaDescription
	}

	var replaced []models.ProductImage
	if in.Images != nil && len(*in.Images) > 0 {
		replaced = p.Images
		p.Images = withAlt(*in.Images, p.Name)
	}
	return replaced, nil
}

func validatePricing(price decimal.Decimal, discount *decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Price cannot be negative")
	}
	if discount == nil {
		return nil
	}
	if discount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Discount price cannot be negative")
	}
	if !discount.LessThan(price) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Discount price must be less than regular price").
			WithDetails(map[string]any{"discountPrice": discount.StringFixed(2), "price": price.StringFixed(2)})
	}
	return nil
}

func validatePriceRange(f ListFilters) error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MaxPrice.LessThan(*f.MinPrice) {
		return pkgerrors.New(pkgerrors.CodeValidation, "maxPrice must not be below minPrice")
	}
	return nil
}

func slugFor(name string) (string, error) {
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Product name is required")
	}
	slug := Slugify(name)
	if slug == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Product name must contain letters or digits")
	}
	return slug, nil
}

// withAlt copies the gallery, defaulting alt text to the product name.
func withAlt(images []models.ProductImage, name string) []models.ProductImage {
	out := make([]models.ProductImage, len(images))
	copy(out, images)
	for i := range out {
		if strings.TrimSpace(out[i].Alt) == "" {
			out[i].Alt = name
		}
	}
	return models.NormalizePrimaryImage(out)
}

func roundedPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := d.Round(2)
	return &v
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxShowcaseLimit {
		return maxShowcaseLimit
	}
	return limit
}

func isSlugConflict(err error) bool {
	return db.IsUniqueViolation(err, slugIndex) || db.IsUniqueViolation(err, "products.slug")
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound()
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func (s *service) cleanup(ctx context.Context, images []models.ProductImage) {
	if s.images == nil || len(images) == 0 {
		return
	}
	if err := s.images.RemoveImages(ctx, images); err != nil && s.logg != nil {
		s.logg.Error(ctx, "product.image_cleanup_failed", err)
	}
}

func (s *service) info(ctx context.Context, p *models.Product, msg string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"product_id": p.ID.String(), "slug": p.Slug})
	s.logg.Info(ctx, msg)
}
