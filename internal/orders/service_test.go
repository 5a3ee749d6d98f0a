package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/internal/users"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db/dbtest"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/types"
)

type counterSequencer struct {
	mu  sync.Mutex
	n   int64
	err error
}

func (c *counterSequencer) NextSequence(context.Context, string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.n++
	return c.n, nil
}

type orderHarness struct {
	svc   Service
	conn  *gorm.DB
	seq   *counterSequencer
	buyer pkgAuth.Actor
	admin pkgAuth.Actor
}

func newOrderHarness(t *testing.T, strict bool) *orderHarness {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()

	userRepo := users.NewRepository(conn)
	buyer := &models.User{Email: "buyer@example.com", PasswordHash: "hash", FirstName: "Mira", LastName: "Potter", Role: enums.RoleCustomer, IsActive: true}
	require.NoError(t, userRepo.Create(context.Background(), buyer))

	seq := &counterSequencer{}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(conn),
		Tx:                client,
		Inventory:         product.NewInventory(),
		Accounts:          users.NewAccountTotals(userRepo),
		Outbox:            outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:           NewNumberGenerator(seq),
		StrictTransitions: strict,
	})
	require.NoError(t, err)
	return &orderHarness{
		svc:   svc,
		conn:  conn,
		seq:   seq,
		buyer: pkgAuth.Actor{UserID: buyer.ID, Role: enums.RoleCustomer},
		admin: pkgAuth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin},
	}
}

func (h *orderHarness) product(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:        name,
		Slug:        product.Slugify(name),
		Description: "Stoneware",
		Price:       decimal.NewFromInt(price),
		Category:    enums.ProductCategoryCeramics,
		Stock:       stock,
		IsActive:    true,
		Images: []models.ProductImage{{
			URL:      "https://cdn.example.com/full.jpg",
			Variants: models.ImageVariants{Thumbnail: "https://cdn.example.com/thumb.jpg"},
		}},
	}
	require.NoError(t, h.conn.Create(p).Error)
	return p
}

func (h *orderHarness) stock(t *testing.T, id uuid.UUID) (int, int) {
	t.Helper()
	var p models.Product
	require.NoError(t, h.conn.First(&p, "id = ?", id).Error)
	return p.Stock, p.SoldCount
}

func (h *orderHarness) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func checkout(items ...OrderItemInput) CreateOrderInput {
	return CreateOrderInput{
		Items: items,
		ShippingAddress: types.PostalAddress{
			FirstName: " Mira ", LastName: "Potter", AddressLine1: "1 Kiln Rd",
			City: "Stoke", State: "ST", PostalCode: "ST1 1AA", Country: "gb",
		},
		PaymentMethod: enums.PaymentMethodCreditCard,
		TaxAmount:     decimal.NewFromInt(1),
		ShippingCost:  decimal.NewFromInt(5),
	}
}

func TestCreateOrderSnapshotsAndReservesStock(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)

	order, err := h.svc.Create(ctx, h.buyer, checkout(
		OrderItemInput{ProductID: mug.ID, Quantity: 1},
		OrderItemInput{ProductID: mug.ID, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-\d+-0001$`, order.OrderNumber)
	require.Len(t, order.Items, 1, "repeated products merge into one line")
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", order.Items[0].Image)
	assert.Equal(t, "20.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "26.00", order.Total.StringFixed(2))
	assert.Equal(t, "Mira", order.ShippingAddress.FirstName)
	assert.Equal(t, "GB", order.ShippingAddress.Country)
	require.NotNil(t, order.BillingAddress)
	assert.Equal(t, order.ShippingAddress, *order.BillingAddress)
	assert.Equal(t, enums.ShippingMethodStandard, order.ShippingMethod)
	assert.True(t, order.CanCancel)
	assert.Equal(t, 1, order.Version)

	stock, sold := h.stock(t, mug.ID)
	assert.Equal(t, 3, stock)
	assert.Equal(t, 2, sold)
	assert.Equal(t, int64(1), h.events(t, enums.EventOrderCreated))

	// later catalog price changes never touch the snapshot
	require.NoError(t, h.conn.Model(&models.Product{}).Where("id = ?", mug.ID).Update("price", decimal.NewFromInt(99)).Error)
	reloaded, err := h.svc.Get(ctx, h.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", reloaded.Items[0].UnitPrice.StringFixed(2))
}

func TestCreateOrderValidation(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 1)
	hidden := h.product(t, "Hidden Mug", 10, 10)
	require.NoError(t, h.conn.Model(hidden).Update("is_active", false).Error)

	_, err := h.svc.Create(ctx, h.buyer, checkout())
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 0}))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 2}))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: hidden.ID, Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeValidation)

	in := checkout(OrderItemInput{ProductID: mug.ID, Quantity: 1})
	in.DiscountAmount = decimal.NewFromInt(100)
	_, err = h.svc.Create(ctx, h.buyer, in)
	requireCode(t, err, pkgerrors.CodeValidation)

	stock, sold := h.stock(t, mug.ID)
	assert.Equal(t, 1, stock, "failed checkouts roll back reservations")
	assert.Equal(t, 0, sold)

	h.seq.err = errors.New("redis down")
	_, err = h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestGetEnforcesOwnership(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)
	order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 1}))
	require.NoError(t, err)

	stranger := pkgAuth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err = h.svc.Get(ctx, stranger, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.Get(ctx, h.admin, order.ID)
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, h.admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Cancel(ctx, stranger, order.ID, CancelInput{Reason: "not mine"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelRestoresStock(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)
	order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 3}))
	require.NoError(t, err)

	cancelled, err := h.svc.Cancel(ctx, h.buyer, order.ID, CancelInput{Reason: "Ordered twice"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 2, cancelled.Version)
	require.Len(t, cancelled.Timeline, 2)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, h.buyer.UserID, *cancelled.CancelledBy)

	stock, sold := h.stock(t, mug.ID)
	assert.Equal(t, 5, stock)
	assert.Equal(t, 0, sold)
	assert.Equal(t, int64(1), h.events(t, enums.EventOrderCancelled))

	_, err = h.svc.Cancel(ctx, h.buyer, order.ID, CancelInput{Reason: "again"})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	require.NoError(t, h.svc.Delete(ctx, order.ID))
	_, err = h.svc.Get(ctx, h.admin, order.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestFulfilmentPaymentAndRefund(t *testing.T) {
	h := newOrderHarness(t, true)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)
	order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 2}))
	require.NoError(t, err)

	requireCode(t, h.svc.Delete(ctx, order.ID), pkgerrors.CodeStateConflict)

	_, err = h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: enums.OrderStatusDelivered})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	txn := "txn_42"
	paid, err := h.svc.MarkPaid(ctx, h.admin, order.ID, PaymentInput{TransactionID: &txn})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)

	_, err = h.svc.SetTracking(ctx, h.admin, order.ID, TrackingInput{TrackingNumber: "1Z999", Carrier: "UPS"})
	require.NoError(t, err)

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		_, err = h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: next})
		require.NoError(t, err)
	}

	refunded, err := h.svc.Refund(ctx, h.admin, order.ID, RefundInput{Reason: "Arrived cracked"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)
	require.NotNil(t, refunded.PaymentDetails.RefundAmount)
	assert.Equal(t, "26.00", refunded.PaymentDetails.RefundAmount.StringFixed(2))
	// placed, paid, tracking, confirmed, shipped, delivered, refunded
	assert.Len(t, refunded.Timeline, 7)
	assert.Equal(t, "Order shipped with tracking number: 1Z999", refunded.Timeline[4].Note)
	assert.Equal(t, 7, refunded.Version)

	var buyer models.User
	require.NoError(t, h.conn.First(&buyer, "id = ?", h.buyer.UserID).Error)
	assert.Equal(t, 1, buyer.OrderCount)
	assert.Equal(t, "26.00", buyer.TotalSpent.StringFixed(2))

	assert.Equal(t, int64(3), h.events(t, enums.EventOrderStatusChanged))
	assert.Equal(t, int64(1), h.events(t, enums.EventOrderPaid))
	assert.Equal(t, int64(1), h.events(t, enums.EventOrderRefunded))

	require.NoError(t, h.svc.Delete(ctx, order.ID))
}

func TestStatusCancelledReleasesStock(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)
	order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 4}))
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: enums.OrderStatusConfirmed})
	require.NoError(t, err)
	updated, err := h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: enums.OrderStatusCancelled, Note: "Out of clay"})
	require.NoError(t, err)
	assert.Equal(t, "Out of clay", updated.Timeline[len(updated.Timeline)-1].Note)

	stock, _ := h.stock(t, mug.ID)
	assert.Equal(t, 5, stock)
}

func TestStatusUpdateCannotRefund(t *testing.T) {
	for name, strict := range map[string]bool{"strict": true, "loose": false} {
		t.Run(name, func(t *testing.T) {
			h := newOrderHarness(t, strict)
			ctx := context.Background()
			mug := h.product(t, "Speckled Mug", 10, 5)
			order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 1}))
			require.NoError(t, err)
			for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
				_, err = h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: next})
				require.NoError(t, err)
			}

			_, err = h.svc.UpdateStatus(ctx, h.admin, order.ID, StatusInput{Status: enums.OrderStatusRefunded})
			requireCode(t, err, pkgerrors.CodeStateConflict)

			reloaded, err := h.svc.Get(ctx, h.admin, order.ID)
			require.NoError(t, err)
			assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)
			assert.Equal(t, enums.PaymentStatusPending, reloaded.PaymentStatus)
			assert.Nil(t, reloaded.PaymentDetails.RefundAmount)
			assert.Zero(t, h.events(t, enums.EventOrderRefunded))
		})
	}
}

func TestStaleWriteIsConflict(t *testing.T) {
	h := newOrderHarness(t, false)
	ctx := context.Background()
	mug := h.product(t, "Speckled Mug", 10, 5)
	order, err := h.svc.Create(ctx, h.buyer, checkout(OrderItemInput{ProductID: mug.ID, Quantity: 1}))
	require.NoError(t, err)

	repo := NewRepository(h.conn)
	stale, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)

	_, err = h.svc.SetTracking(ctx, h.admin, order.ID, TrackingInput{TrackingNumber: "1Z1", Carrier: "DHL"})
	require.NoError(t, err)

	stale.Notes = strPtr("late writer")
	require.ErrorIs(t, repo.Save(ctx, stale), ErrVersionConflict)
}

func TestRevenueYearValidation(t *testing.T) {
	h := newOrderHarness(t, false)
	_, err := h.svc.RevenueByMonth(context.Background(), 1999)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func strPtr(s string) *string { return &s }
