package product

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
)

// Inventory moves catalog stock on behalf of the order flow. Every call runs
// on the caller's transaction.
type Inventory struct{}

func NewInventory() *Inventory {
	return &Inventory{}
}

// LoadForOrder returns the requested products keyed by id. Missing ids are
// simply absent from the map.
func (Inventory) LoadForOrder(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := NewRepository(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Reserve takes qty units and counts them as sold. It reports false without
// touching the row when there is not enough stock.
func (Inventory) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"sold_count": gorm.Expr("sold_count + ?", qty),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release puts qty units back; sold_count never drops below zero.
func (Inventory) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"sold_count": gorm.Expr("CASE WHEN sold_count >= ? THEN sold_count - ? ELSE 0 END", qty, qty),
		}).Error
}
