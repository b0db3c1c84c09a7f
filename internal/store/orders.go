package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/ledger"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, client_id, user_id, processing_id, status, total_amount, shipping_address, notes, created_at, updated_at`

type CreateOrderRequest struct {
	ClientID        int64
	UserID          int64
	ShippingAddress string
	Notes           string
	Items           []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// OrderResult is returned by writes that may accept lines beyond available
// stock; Warnings lists those lines.
type OrderResult struct {
	Order    *models.Order
	Warnings []ledger.StockWarning
}

// OrderDetail adds the payment position to an order.
type OrderDetail struct {
	models.Order
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Balance    decimal.Decimal `json:"balance"`
}

type OrderFilter struct {
	Status   string
	ClientID *int64
	UserID   *int64
	Page
}

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.ClientID,
		&order.UserID,
		&order.ProcessingID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
}

// CreateOrder snapshots price and name of every requested product, debits
// stock and stores the order with its lines in one transaction. Lines asking
// for more than is on hand are accepted and reported as warnings.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*OrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ledger.ErrOrderWithoutItems
	}

	var result *OrderResult

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = &OrderResult{Warnings: []ledger.StockWarning{}}

		if err := clientExists(ctx, tx, req.ClientID); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		for _, line := range req.Items {
			item, warning, err := takeProduct(ctx, tx, line)
			if err != nil {
				return err
			}
			if warning != nil {
				result.Warnings = append(result.Warnings, *warning)
			}
			items = append(items, item)
		}

		var orderID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (client_id, user_id, status, total_amount, shipping_address, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			 RETURNING id`,
			req.ClientID, req.UserID, models.OrderStatusPending, ledger.OrderTotal(items),
			req.ShippingAddress, req.Notes).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i := range items {
			if err := insertOrderItem(ctx, tx, orderID, &items[i]); err != nil {
				return err
			}
		}

		order, err := getOrder(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}
		result.Order = order

		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// takeProduct locks the product, debits the requested quantity and returns
// the line to store with its price and name snapshot.
func takeProduct(ctx context.Context, tx *sql.Tx, line OrderItemRequest) (models.OrderItem, *ledger.StockWarning, error) {
	if line.Quantity <= 0 {
		return models.OrderItem{}, nil, ledger.ErrInvalidQuantity.With("product_id", line.ProductID)
	}

	product, err := lockProduct(ctx, tx, line.ProductID)
	if err != nil {
		return models.OrderItem{}, nil, err
	}

	warning := ledger.CheckStock(product, line.Quantity)

	if err := adjustStock(ctx, tx, product.ID, -line.Quantity); err != nil {
		return models.OrderItem{}, nil, err
	}

	return models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   product.Price,
	}, warning, nil
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, orderID int64, item *models.OrderItem) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id, order_id, created_at`,
		orderID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice).Scan(
		&item.ID,
		&item.OrderID,
		&item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order item: %w", err)
	}
	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*OrderDetail, error) {
	order, err := getOrder(ctx, db, id)
	if err != nil {
		return nil, err
	}

	paid, err := sumPayments(ctx, db, id)
	if err != nil {
		return nil, err
	}

	return &OrderDetail{
		Order:      *order,
		AmountPaid: paid,
		Balance:    ledger.Debt(order.TotalAmount, paid),
	}, nil
}

func getOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := scanOrderItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func scanOrderItem(row rowScanner, item *models.OrderItem) error {
	return row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.ProductName,
		&item.Quantity,
		&item.UnitPrice,
		&item.CreatedAt,
	)
}

func getOrderItem(ctx context.Context, q database.Querier, itemID int64) (*models.OrderItem, error) {
	item := &models.OrderItem{}

	err := scanOrderItem(q.QueryRowContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		 FROM order_items
		 WHERE id = $1`, itemID), item)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}

	return item, nil
}

// lockOrder reads the order header under FOR UPDATE. Every ledger write on an
// order (status, items, payments, returns) takes this lock first, so their
// read-check-write sequences never interleave.
func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	return order, nil
}

func ListOrders(ctx context.Context, db *sql.DB, filter OrderFilter) (*OffsetPage, error) {
	page := filter.Page.Normalize()

	where := `WHERE ($1 = '' OR status = $1)
		  AND ($2::BIGINT IS NULL OR client_id = $2)
		  AND ($3::BIGINT IS NULL OR user_id = $3)`

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where,
		filter.Status, filter.ClientID, filter.UserID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5`

	rows, err := db.QueryContext(ctx, query, filter.Status, filter.ClientID, filter.UserID, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, page), nil
}

// ListClientOrdersCursor pages a client's order history newest first using a
// keyset cursor on (created_at, id).
func ListClientOrdersCursor(ctx context.Context, db *sql.DB, clientID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE client_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, clientID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list client orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateOrderStatus moves an order forward through its lifecycle. The first
// move from pending to processing records actorID as the warehouse handler.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, target string, actorID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := ledger.CheckOrderTransition(current.Status, target); err != nil {
			return err
		}

		if ledger.RecordsProcessor(current.Status, target) {
			_, err = tx.ExecContext(ctx,
				`UPDATE orders SET status = $1, processing_id = $2, updated_at = NOW() WHERE id = $3`,
				target, actorID, id)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
				target, id)
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrder cancels a pending or processing order and puts its units back
// in stock. Shipped and completed orders go through returns instead.
func CancelOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := ledger.CheckCancel(current.Status); err != nil {
			return err
		}

		items, err := getOrderItems(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := adjustStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			models.OrderStatusCancelled, id)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		order, err = getOrder(ctx, tx, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// AddOrderItem appends a line to a pending order and recomputes its total.
func AddOrderItem(ctx context.Context, db *sql.DB, orderID int64, line OrderItemRequest) (*OrderResult, error) {
	var result *OrderResult

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = &OrderResult{Warnings: []ledger.StockWarning{}}

		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := ledger.CheckItemsEditable(current.Status); err != nil {
			return err
		}

		item, warning, err := takeProduct(ctx, tx, line)
		if err != nil {
			return err
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}

		if err := insertOrderItem(ctx, tx, orderID, &item); err != nil {
			return err
		}
		if err := recomputeTotal(ctx, tx, orderID); err != nil {
			return err
		}

		result.Order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// RemoveOrderItem drops a line from a pending order, restocks it and
// recomputes the total. The last line cannot be removed, nor one that has
// returns, nor one whose removal would leave the order overpaid.
func RemoveOrderItem(ctx context.Context, db *sql.DB, orderID, itemID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := ledger.CheckItemsEditable(current.Status); err != nil {
			return err
		}

		item, err := getOrderItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item.OrderID != orderID {
			return database.ErrOrderItemNotFound
		}

		var lines int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&lines); err != nil {
			return fmt.Errorf("count order items: %w", err)
		}
		if lines <= 1 {
			return ledger.ErrOrderWithoutItems
		}

		referenced, err := hasReturnLines(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if referenced {
			return ledger.ErrItemHasReturns.With("order_item_id", itemID)
		}

		paid, err := sumPayments(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := ledger.CheckTotalCoversPaid(current.TotalAmount.Sub(item.Subtotal()), paid); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, itemID); err != nil {
			if database.IsForeignKeyViolation(err) {
				return ledger.ErrItemHasReturns.With("order_item_id", itemID)
			}
			return fmt.Errorf("delete order item: %w", err)
		}
		if err := adjustStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := recomputeTotal(ctx, tx, orderID); err != nil {
			return err
		}

		order, err = getOrder(ctx, tx, orderID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func recomputeTotal(ctx context.Context, tx *sql.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET total_amount = (
		         SELECT COALESCE(SUM(quantity * unit_price), 0)
		         FROM order_items
		         WHERE order_id = $1),
		     updated_at = NOW()
		 WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("recompute order total: %w", err)
	}
	return nil
}
