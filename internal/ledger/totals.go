package ledger

import (
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/shopspring/decimal"
)

// StockWarning is reported when an order line asks for more units than the
// product has on hand. The line is still accepted and stock goes negative.
type StockWarning struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func CheckStock(product *models.Product, requested int) *StockWarning {
	if requested <= product.StockQuantity {
		return nil
	}
	return &StockWarning{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   requested,
		Available:   product.StockQuantity,
	}
}

func OrderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
