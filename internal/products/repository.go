package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// effectivePriceExpr mirrors models.Product.EffectivePrice in SQL.
const effectivePriceExpr = "(CASE WHEN discount_price IS NOT NULL AND discount_price > 0 THEN discount_price ELSE price END)"

// Repository wires together all catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product whether or not it is active.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveBySlug only resolves storefront-visible products.
func (r *Repository) FindActiveBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// Create inserts a new product row. Inactive products are flipped after the
// insert because the column default wins over a false value.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	active := product.IsActive
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return err
	}
	if !active {
		product.IsActive = false
		return r.db.WithContext(ctx).Model(product).Update("is_active", false).Error
	}
	return nil
}

// Save writes every column of an existing product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// AdjustStock adds delta to the stock level, clamping at zero, and returns the
// new level.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("CASE WHEN stock + ? < 0 THEN 0 ELSE stock + ? END", delta, delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var stock int
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Pluck("stock", &stock).Error
	return stock, err
}

// UpdateRating stores an aggregate computed by the review moderation flow.
func (r *Repository) UpdateRating(ctx context.Context, id uuid.UUID, average float64, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"average_rating": average, "ratings_quantity": quantity}).Error
}

// Featured returns active featured products, newest first.
func (r *Repository) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("featured = ? AND is_active = ?", true, true).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Related returns other active products of the same category, best rated and
// best selling first.
func (r *Repository) Related(ctx context.Context, product *models.Product, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id <> ? AND category = ? AND is_active = ?", product.ID, product.Category, true).
		Order("average_rating DESC").Order("sold_count DESC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListNewest walks active products newest first with a keyset cursor.
func (r *Repository) ListNewest(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.filtered(ctx, filters)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []models.Product
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&records).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(records) > pageSize {
		records = records[:pageSize]
		last := records[len(records)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return records, nextCursor, nil
}

// ListSorted pages active products by price, rating or popularity.
func (r *Repository) ListSorted(ctx context.Context, filters ListFilters, sort enums.ProductSort, page pagination.Page) ([]models.Product, int64, error) {
	qb := r.filtered(ctx, filters)

	var total int64
	if err := qb.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch sort {
	case enums.ProductSortPriceAsc:
		qb = qb.Order(effectivePriceExpr + " ASC")
	case enums.ProductSortPriceDesc:
		qb = qb.Order(effectivePriceExpr + " DESC")
	case enums.ProductSortRating:
		qb = qb.Order("average_rating DESC").Order("ratings_quantity DESC")
	case enums.ProductSortPopularity:
		qb = qb.Order("sold_count DESC").Order("views DESC")
	default:
		qb = qb.Order("created_at DESC")
	}

	page = page.Normalize()
	var rows []models.Product
	err := qb.Order("id ASC").Offset(page.Offset()).Limit(page.Limit).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) filtered(ctx context.Context, filters ListFilters) *gorm.DB {
	qb := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	if filters.Category != nil {
		qb = qb.Where("category = ?", *filters.Category)
	}
	// bound as floats so sqlite compares the CASE expression numerically
	if filters.MinPrice != nil {
		qb = qb.Where(effectivePriceExpr+" >= ?", filters.MinPrice.InexactFloat64())
	}
	if filters.MaxPrice != nil {
		qb = qb.Where(effectivePriceExpr+" <= ?", filters.MaxPrice.InexactFloat64())
	}
	if filters.Featured != nil {
		qb = qb.Where("featured = ?", *filters.Featured)
	}
	if tags := cleanTags(filters.Tags); len(tags) > 0 {
		qb = r.withAnyTag(qb, tags)
	}
	if search := strings.TrimSpace(filters.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	return qb
}

// withAnyTag matches products carrying at least one of tags. Postgres uses
// array overlap; sqlite stores the array literal as text.
func (r *Repository) withAnyTag(qb *gorm.DB, tags []string) *gorm.DB {
	if r.db.Dialector.Name() != "sqlite" {
		return qb.Where("tags && ?", pq.StringArray(tags))
	}
	clauses := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for _, tag := range tags {
		clauses = append(clauses, "tags LIKE ?")
		args = append(args, fmt.Sprintf("%%%q%%", tag))
	}
	return qb.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
