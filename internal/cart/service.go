package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

const maxLineQuantity = 99

type cartRepository interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Find(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, qty int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type catalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// Service manages the caller's cart. Prices are always read live from the
// catalog; the order snapshot happens at checkout.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	Repo    cartRepository
	Catalog catalog
}

type service struct {
	repo    cartRepository
	catalog catalog
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{repo: params.Repo, catalog: params.Catalog}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(rows) == 0 {
		return &CartDTO{Items: []CartLineDTO{}, Subtotal: decimal.Zero}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return buildCart(rows, byID), nil
}

// Add merges into an existing line for the same product.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 || qty > maxLineQuantity {
		return nil, errQuantity()
	}
	p, err := s.activeProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	existing := 0
	line, err := s.repo.Find(ctx, userID, p.ID)
	switch {
	case err == nil:
		existing = line.Quantity
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
	}
	if err := checkStock(p, existing+qty); err != nil {
		return nil, err
	}
	if err := s.repo.Add(ctx, userID, p.ID, qty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart line")
	}
	return s.Get(ctx, userID)
}

// UpdateQuantity sets the line quantity; zero or less removes the line.
func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		if _, err := s.findLine(ctx, userID, productID); err != nil {
			return nil, err
		}
		return s.Remove(ctx, userID, productID)
	}
	if quantity > maxLineQuantity {
		return nil, errQuantity()
	}
	p, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(p, quantity); err != nil {
		return nil, err
	}
	if err := s.repo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLineNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) findLine(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	line, err := s.repo.Find(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLineNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart line")
	}
	return line, nil
}

func (s *service) activeProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	p, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !p.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product is not available")
	}
	return p, nil
}

func checkStock(p *models.Product, qty int) error {
	if qty > p.Stock {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Insufficient stock for %s", p.Name)).
			WithDetails(map[string]any{"productId": p.ID.String(), "available": p.Stock})
	}
	return nil
}

func errQuantity() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Quantity must be between 1 and %d", maxLineQuantity)).
		WithDetails(map[string]string{"quantity": "out of range"})
}

func errLineNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Item not found in cart")
}

// buildCart prices lines against the live catalog and skips products that are
// gone or deactivated.
func buildCart(rows []models.CartItem, products map[uuid.UUID]*models.Product) *CartDTO {
	out := &CartDTO{Items: make([]CartLineDTO, 0, len(rows)), Subtotal: decimal.Zero}
	for _, row := range rows {
		p, ok := products[row.ProductID]
		if !ok || !p.IsActive {
			out.Unavailable = append(out.Unavailable, row.ProductID)
			continue
		}
		lineTotal := p.EffectivePrice().Mul(decimal.NewFromInt(int64(row.Quantity))).Round(2)
		out.Items = append(out.Items, CartLineDTO{
			Product:   product.NewProductSummary(p),
			Quantity:  row.Quantity,
			LineTotal: lineTotal,
			AddedAt:   row.CreatedAt,
		})
		out.ItemsCount += row.Quantity
		out.Subtotal = out.Subtotal.Add(lineTotal)
	}
	return out
}

// CartDTO is the priced cart view.
type CartDTO struct {
	Items       []CartLineDTO   `json:"items"`
	ItemsCount  int             `json:"itemsCount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Unavailable []uuid.UUID     `json:"unavailable,omitempty"`
}

type CartLineDTO struct {
	Product   product.ProductSummary `json:"product"`
	Quantity  int                    `json:"quantity"`
	LineTotal decimal.Decimal        `json:"lineTotal"`
	AddedAt   time.Time              `json:"addedAt"`
}

type AddItemInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type QuantityInput struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}
