package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	CategoryID    *int64          `json:"category_id"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Visit struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	UserID    int64     `json:"user_id"`
	VisitDate time.Time `json:"visit_date"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	UserID          int64           `json:"user_id"`
	ProcessingID    *int64          `json:"processing_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
}

// OrderItem keeps ProductName and UnitPrice as they were when the line was
// written; later product edits never touch them.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Notes       string          `json:"notes"`
	PaymentDate time.Time       `json:"payment_date"`
}

type Return struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ClientID      int64           `json:"client_id"`
	UserID        int64           `json:"user_id"`
	Reason        string          `json:"reason"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []ReturnItem    `json:"items,omitempty"`
}

type ReturnItem struct {
	ID                int64           `json:"id"`
	ReturnID          int64           `json:"return_id"`
	OrderItemID       int64           `json:"order_item_id"`
	ProductID         int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceRefunded decimal.Decimal `json:"unit_price_refunded"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	ReturnStatusPending   = "pending"
	ReturnStatusApproved  = "approved"
	ReturnStatusCompleted = "completed"
	ReturnStatusCancelled = "cancelled"
)

const (
	PaymentMethodCash       = "cash"
	PaymentMethodTransfer   = "transfer"
	PaymentMethodCreditCard = "credit_card"
)

const (
	RoleAdmin     = "admin"
	RoleSeller    = "vendedor"
	RoleWarehouse = "almacen"
)
