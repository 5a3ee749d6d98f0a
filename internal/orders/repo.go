package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Order, int64, error)
	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
	RevenueByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error)
}

// ListFilters narrows the admin order listing.
type ListFilters struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Save writes every column guarded by the version the order was loaded at,
// then bumps the version. A concurrent writer makes it return
// ErrVersionConflict and leaves the in-memory version untouched.
func (r *repository) Save(ctx context.Context, order *models.Order) error {
	loaded := order.Version
	order.Version = loaded + 1
	res := r.db.WithContext(ctx).
		Model(order).
		Where("version = ?", loaded).
		Select("*").
		Omit("id", "created_at").
		Updates(order)
	if res.Error != nil {
		order.Version = loaded
		return res.Error
	}
	if res.RowsAffected == 0 {
		order.Version = loaded
		return ErrVersionConflict
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	return r.List(ctx, ListFilters{UserID: &userID}, page)
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var rows []models.Order
	err := q.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	return rows, total, err
}

// Stats aggregates order counts and revenue over an optional created_at range.
type Stats struct {
	TotalOrders       int64           `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	PendingOrders     int64           `json:"pendingOrders"`
	CompletedOrders   int64           `json:"completedOrders"`
	CancelledOrders   int64           `json:"cancelledOrders"`
}

type statsRow struct {
	TotalOrders     int64
	TotalRevenue    decimal.Decimal
	PendingOrders   int64
	CompletedOrders int64
	CancelledOrders int64
}

func (r *repository) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Select(
		`COUNT(*) AS total_orders,
		COALESCE(SUM(total), 0) AS total_revenue,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_orders,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_orders,
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled_orders`,
		enums.OrderStatusPending, enums.OrderStatusDelivered, enums.OrderStatusCancelled,
	)
	if from != nil {
		q = q.Where("created_at >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("created_at <= ?", to.UTC())
	}

	var row statsRow
	if err := q.Scan(&row).Error; err != nil {
		return nil, err
	}
	stats := &Stats{
		TotalOrders:       row.TotalOrders,
		TotalRevenue:      row.TotalRevenue.Round(2),
		AverageOrderValue: decimal.Zero,
		PendingOrders:     row.PendingOrders,
		CompletedOrders:   row.CompletedOrders,
		CancelledOrders:   row.CancelledOrders,
	}
	if row.TotalOrders > 0 {
		stats.AverageOrderValue = row.TotalRevenue.Div(decimal.NewFromInt(row.TotalOrders)).Round(2)
	}
	return stats, nil
}

// MonthlyRevenue is one calendar month of non-cancelled orders.
type MonthlyRevenue struct {
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

func (r *repository) RevenueByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var rows []MonthlyRevenue
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(fmt.Sprintf("%s AS month, COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS orders", r.monthExpr())).
		Where("created_at >= ? AND created_at < ?", start, end).
		Where("status <> ?", enums.OrderStatusCancelled).
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Revenue = rows[i].Revenue.Round(2)
	}
	return rows, nil
}

func (r *repository) monthExpr() string {
	if r.db.Dialector.Name() == "sqlite" {
		return "CAST(strftime('%m', created_at) AS INTEGER)"
	}
	return "CAST(EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC') AS INTEGER)"
}
