package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/outbox/payloads"
	"github.com/seramic/shop-backend/pkg/pagination"
)

const orderNumberIndex = "ux_orders_order_number"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Inventory reserves and returns catalog stock inside the order transaction.
type Inventory interface {
	LoadForOrder(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// AccountTotals records paid orders against the buyer.
type AccountTotals interface {
	RecordOrderPayment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error
}

// Service is the order lifecycle manager exposed to controllers.
type Service interface {
	Create(ctx context.Context, actor pkgAuth.Actor, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, actor pkgAuth.Actor, page pagination.Page) (*OrderList, error)
	List(ctx context.Context, filters ListFilters, page pagination.Page) (*OrderList, error)
	Cancel(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input CancelInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input StatusInput) (*OrderDTO, error)
	MarkPaid(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input PaymentInput) (*OrderDTO, error)
	SetTracking(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input TrackingInput) (*OrderDTO, error)
	Refund(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input RefundInput) (*OrderDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
	RevenueByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error)
}

// ServiceParams bundles the dependencies of the order service.
type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Inventory         Inventory
	Accounts          AccountTotals
	Outbox            outbox.Emitter
	Numbers           *NumberGenerator
	StrictTransitions bool
	Metrics           *metrics.DomainMetrics
	Logger            *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory Inventory
	accounts  AccountTotals
	outbox    outbox.Emitter
	numbers   *NumberGenerator
	lifecycle *Lifecycle
	metrics   *metrics.DomainMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory required")
	case params.Accounts == nil:
		return nil, fmt.Errorf("account totals required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("order number generator required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		accounts:  params.Accounts,
		outbox:    params.Outbox,
		numbers:   params.Numbers,
		lifecycle: NewLifecycle(params.StrictTransitions),
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor pkgAuth.Actor, input CreateOrderInput) (*OrderDTO, error) {
	lines, err := mergeLines(input.Items)
	if err != nil {
		return nil, err
	}
	if err := validateAdjustments(input); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	shipping := input.ShippingMethod
	if shipping == "" {
		shipping = enums.ShippingMethodStandard
	}
	if !shipping.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	shippingAddr := input.ShippingAddress.Normalize()
	billingAddr := &shippingAddr
	if input.BillingAddress != nil {
		normalized := input.BillingAddress.Normalize()
		billingAddr = &normalized
	}

	order := &models.Order{
		OrderNumber:     number,
		UserID:          actor.UserID,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
		PaymentMethod:   input.PaymentMethod,
		ShippingMethod:  shipping,
		TaxAmount:       input.TaxAmount,
		ShippingCost:    input.ShippingCost,
		DiscountAmount:  input.DiscountAmount,
		CustomerNotes:   input.CustomerNotes,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		catalog, err := s.inventory.LoadForOrder(ctx, tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, ok := catalog[line.ProductID]
			if !ok || !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "Product is not available").
					WithDetails(map[string]string{"productId": line.ProductID.String()})
			}
			reserved, err := s.inventory.Reserve(ctx, tx, product.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
			}
			if !reserved {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Insufficient stock for %s", product.Name)).
					WithDetails(map[string]any{"productId": product.ID.String(), "available": product.Stock})
			}
			items = append(items, snapshot(&product, line.Quantity))
		}
		order.Items = items

		s.lifecycle.Start(order, actor.Ref())
		if order.Total.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot exceed the order value")
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, orderNumberIndex) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already taken, please retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		return s.emit(ctx, tx, actor, order, enums.EventOrderCreated, payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			ItemCount:     ItemsCount(order),
			Total:         order.Total,
			Currency:      order.Currency,
			PaymentMethod: order.PaymentMethod,
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, order, "order created")
	return FromModel(order, s.now()), nil
}

func (s *service) Get(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to view this order")
	}
	return FromModel(order, s.now()), nil
}

func (s *service) ListMine(ctx context.Context, actor pkgAuth.Actor, page pagination.Page) (*OrderList, error) {
	rows, total, err := s.repo.ListByUser(ctx, actor.UserID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return s.toList(rows, total, page), nil
}

func (s *service) List(ctx context.Context, filters ListFilters, page pagination.Page) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return s.toList(rows, total, page), nil
}

func (s *service) Cancel(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input CancelInput) (*OrderDTO, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, order *models.Order) error {
		if !actor.IsAdmin() && !actor.Owns(order.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to cancel this order")
		}
		from := order.Status
		if err := s.lifecycle.Cancel(order, input.Reason, actor.Ref()); err != nil {
			return err
		}
		if err := s.releaseStock(ctx, tx, order); err != nil {
			return err
		}
		s.metrics.OrderTransition(from.String(), order.Status.String())
		return s.emit(ctx, tx, actor, order, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      input.Reason,
		})
	})
}

func (s *service) UpdateStatus(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input StatusInput) (*OrderDTO, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, order *models.Order) error {
		from, err := s.lifecycle.Transition(order, input.Status, input.Note, actor.Ref())
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			if err := s.releaseStock(ctx, tx, order); err != nil {
				return err
			}
		}
		s.metrics.OrderTransition(from.String(), order.Status.String())
		last := order.Timeline[len(order.Timeline)-1]
		return s.emit(ctx, tx, actor, order, enums.EventOrderStatusChanged, payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			To:          order.Status,
			Note:        last.Note,
		})
	})
}

func (s *service) MarkPaid(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input PaymentInput) (*OrderDTO, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, order *models.Order) error {
		if err := s.lifecycle.MarkPaid(order, input.details(), actor.Ref()); err != nil {
			return err
		}
		if err := s.accounts.RecordOrderPayment(ctx, tx, order.UserID, order.Total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record account payment")
		}
		event := payloads.OrderPaidEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Amount:      order.Total,
			PaidAt:      *order.PaymentDetails.PaidAt,
		}
		if order.PaymentDetails.TransactionID != nil {
			event.TransactionID = *order.PaymentDetails.TransactionID
		}
		return s.emit(ctx, tx, actor, order, enums.EventOrderPaid, event)
	})
}

func (s *service) SetTracking(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input TrackingInput) (*OrderDTO, error) {
	return s.mutate(ctx, id, func(_ *gorm.DB, order *models.Order) error {
		return s.lifecycle.SetTracking(order, input.TrackingNumber, input.Carrier, actor.Ref())
	})
}

func (s *service) Refund(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID, input RefundInput) (*OrderDTO, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, order *models.Order) error {
		from := order.Status
		amount, err := s.lifecycle.Refund(order, input.Amount, input.Reason, actor.Ref())
		if err != nil {
			return err
		}
		s.metrics.OrderTransition(from.String(), order.Status.String())
		return s.emit(ctx, tx, actor, order, enums.EventOrderRefunded, payloads.OrderRefundedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			Amount:        amount,
			PaymentStatus: order.PaymentStatus,
			Reason:        input.Reason,
		})
	})
}

// Delete removes an order that has been closed out by cancellation or refund.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusCancelled && order.Status != enums.OrderStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Only cancelled or refunded orders can be deleted")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
		}
		return nil
	})
}

func (s *service) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "endDate must not be before startDate")
	}
	stats, err := s.repo.Stats(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order stats")
	}
	return stats, nil
}

func (s *service) RevenueByMonth(ctx context.Context, year int) ([]MonthlyRevenue, error) {
	if year < 2000 || year > 9999 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year is out of range")
	}
	rows, err := s.repo.RevenueByMonth(ctx, year)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revenue by month")
	}
	return rows, nil
}

// mutate loads the order inside a transaction, applies fn and persists the
// result under the version check.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*OrderDTO, error) {
	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		Recompute(order)
		if err := repo.Save(ctx, order); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return errStale()
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save order")
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, out, "order updated")
	return FromModel(out, s.now()), nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No order found with that ID")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if err := s.inventory.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release stock")
		}
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor pkgAuth.Actor, order *models.Order, eventType enums.OutboxEventType, data any) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          data,
		OccurredAt:    s.now().UTC(),
	}
	if actor.UserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
	}
	return nil
}

func (s *service) toList(rows []models.Order, total int64, page pagination.Page) *OrderList {
	now := s.now()
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i], now))
	}
	return &OrderList{Orders: out, Meta: pagination.MetaFor(page, total)}
}

func (s *service) info(ctx context.Context, order *models.Order, msg string) {
	if s.logg == nil || order == nil {
		return
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{"order_number": order.OrderNumber, "status": order.Status})
	s.logg.Info(ctx, msg)
}

// mergeLines folds repeated products into one line and validates quantities.
func mergeLines(items []OrderItemInput) ([]OrderItemInput, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder()
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]OrderItemInput, 0, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity(i)
		}
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required").
				WithDetails(map[string]string{fmt.Sprintf("items[%d].productId", i): "required"})
		}
		if at, ok := index[item.ProductID]; ok {
			out[at].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func validateAdjustments(input CreateOrderInput) error {
	for field, v := range map[string]decimal.Decimal{
		"taxAmount":      input.TaxAmount,
		"shippingCost":   input.ShippingCost,
		"discountAmount": input.DiscountAmount,
	} {
		if v.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" cannot be negative").
				WithDetails(map[string]string{field: "must be zero or more"})
		}
	}
	return nil
}

// snapshot captures name, image and effective price at checkout time.
func snapshot(p *models.Product, qty int) models.OrderItem {
	image := ""
	if primary := p.PrimaryImage(); primary != nil {
		image = primary.URL
		if primary.Variants.Thumbnail != "" {
			image = primary.Variants.Thumbnail
		}
	}
	price := p.EffectivePrice()
	return models.OrderItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     image,
		UnitPrice: price,
		Quantity:  qty,
		LineTotal: price.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}
