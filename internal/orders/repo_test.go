package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/dbtest"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
	"github.com/seramic/shop-backend/pkg/types"
)

var insertSeq int

func insertOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID, status enums.OrderStatus, total int64, createdAt time.Time) *models.Order {
	t.Helper()
	insertSeq++
	amount := decimal.NewFromInt(total)
	o := &models.Order{
		OrderNumber: fmt.Sprintf("ORD-%d-%04d", createdAt.UnixMilli(), insertSeq),
		UserID:      userID,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Name: "Bowl", UnitPrice: amount, Quantity: 1, LineTotal: amount},
		},
		ShippingAddress: types.PostalAddress{FirstName: "Mira", LastName: "Potter", AddressLine1: "1 Kiln Rd", City: "Stoke", State: "ST", PostalCode: "ST1", Country: "GB"},
		Status:          status,
		Timeline:        []models.TimelineEntry{{Status: status, Timestamp: createdAt, Note: "Order placed"}},
		PaymentMethod:   enums.PaymentMethodCreditCard,
		PaymentStatus:   enums.PaymentStatusPending,
		Subtotal:        amount,
		Total:           amount,
		Currency:        models.DefaultCurrency,
		ShippingMethod:  enums.ShippingMethodStandard,
		Version:         1,
		CreatedAt:       createdAt,
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), o))
	return o
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	created := insertOrder(t, conn, uuid.New(), enums.OrderStatusPending, 40, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	first, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	first.Status = enums.OrderStatusConfirmed
	first.Timeline = append(first.Timeline, models.TimelineEntry{Status: enums.OrderStatusConfirmed, Timestamp: time.Now().UTC()})
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Status = enums.OrderStatusCancelled
	err = repo.Save(ctx, second)
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 1, second.Version)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Len(t, stored.Timeline, 2)
	assert.Equal(t, 2, stored.Version)
}

func TestListFiltersAndPages(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyer := uuid.New()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	insertOrder(t, conn, buyer, enums.OrderStatusPending, 10, at)
	insertOrder(t, conn, buyer, enums.OrderStatusShipped, 20, at.Add(time.Hour))
	insertOrder(t, conn, uuid.New(), enums.OrderStatusPending, 30, at.Add(2*time.Hour))

	mine, total, err := repo.ListByUser(ctx, buyer, pagination.Page{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, mine, 1)
	assert.Equal(t, enums.OrderStatusShipped, mine[0].Status, "newest first")

	pending := enums.OrderStatusPending
	rows, total, err := repo.List(ctx, ListFilters{Status: &pending}, pagination.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)
}

func TestStatsAndRevenueByMonth(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyer := uuid.New()

	insertOrder(t, conn, buyer, enums.OrderStatusPending, 10, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	insertOrder(t, conn, buyer, enums.OrderStatusDelivered, 30, time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC))
	insertOrder(t, conn, buyer, enums.OrderStatusCancelled, 50, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	insertOrder(t, conn, buyer, enums.OrderStatusDelivered, 20, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	insertOrder(t, conn, buyer, enums.OrderStatusDelivered, 99, time.Date(2025, 12, 31, 8, 0, 0, 0, time.UTC))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	stats, err := repo.Stats(ctx, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalOrders)
	assert.Equal(t, "110.00", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, "27.50", stats.AverageOrderValue.StringFixed(2))
	assert.Equal(t, int64(1), stats.PendingOrders)
	assert.Equal(t, int64(2), stats.CompletedOrders)
	assert.Equal(t, int64(1), stats.CancelledOrders)

	all, err := repo.Stats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.TotalOrders)

	months, err := repo.RevenueByMonth(ctx, 2026)
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, 1, months[0].Month)
	assert.Equal(t, "40.00", months[0].Revenue.StringFixed(2))
	assert.Equal(t, int64(2), months[0].Orders)
	assert.Equal(t, 3, months[1].Month)
	assert.Equal(t, "20.00", months[1].Revenue.StringFixed(2))
	assert.Equal(t, int64(1), months[1].Orders)
}
