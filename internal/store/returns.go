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

const returnColumns = `id, order_id, client_id, user_id, reason, total_refunded, status, created_at, updated_at`

// CreateReturnRequest describes either an item-based return (Items) or a
// manual refund (TotalRefunded). Exactly one of them must be set.
type CreateReturnRequest struct {
	OrderID       int64
	UserID        int64
	Reason        string
	Status        string
	Items         []ReturnItemRequest
	TotalRefunded *decimal.Decimal
}

type ReturnItemRequest struct {
	OrderItemID int64
	Quantity    int
}

type ReturnFilter struct {
	OrderID *int64
	Status  string
	Page
}

func scanReturn(row rowScanner, ret *models.Return) error {
	return row.Scan(
		&ret.ID,
		&ret.OrderID,
		&ret.ClientID,
		&ret.UserID,
		&ret.Reason,
		&ret.TotalRefunded,
		&ret.Status,
		&ret.CreatedAt,
		&ret.UpdatedAt,
	)
}

func (r CreateReturnRequest) validate() (string, error) {
	hasItems := len(r.Items) > 0
	if hasItems == (r.TotalRefunded != nil) {
		return "", ledger.ErrReturnMode
	}

	status := r.Status
	if status == "" {
		status = models.ReturnStatusPending
	}
	if !ledger.ValidInitialReturnStatus(status) {
		return "", ledger.ErrInvalidStatus.With("status", status)
	}

	if r.TotalRefunded != nil && !r.TotalRefunded.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}

	return status, nil
}

// CreateReturn validates every requested line against what the order carried
// and what earlier non-cancelled returns already took back, then writes the
// return header and lines together. Nothing is written if any line fails.
func CreateReturn(ctx context.Context, db *sql.DB, req CreateReturnRequest) (*models.Return, error) {
	status, err := req.validate()
	if err != nil {
		return nil, err
	}

	var ret *models.Return

	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			return ledger.ErrOrderCancelled
		}

		lines, total, err := buildReturnLines(ctx, tx, order.ID, req.Items)
		if err != nil {
			return err
		}
		if req.TotalRefunded != nil {
			total = *req.TotalRefunded
		}

		var returnID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO returns (order_id, client_id, user_id, reason, total_refunded, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			 RETURNING id`,
			order.ID, order.ClientID, req.UserID, req.Reason, total, status).Scan(&returnID)
		if err != nil {
			return fmt.Errorf("create return: %w", err)
		}

		for i := range lines {
			err := tx.QueryRowContext(ctx,
				`INSERT INTO return_items (return_id, order_item_id, product_id, quantity, unit_price_refunded)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				returnID, lines[i].OrderItemID, lines[i].ProductID, lines[i].Quantity, lines[i].UnitPriceRefunded).Scan(&lines[i].ID)
			if err != nil {
				return fmt.Errorf("create return item: %w", err)
			}
		}

		if err := moveReturnStock(ctx, tx, lines, ledger.StockDirection("", status)); err != nil {
			return err
		}

		ret, err = getReturn(ctx, tx, returnID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return ret, nil
}

func buildReturnLines(ctx context.Context, tx *sql.Tx, orderID int64, requested []ReturnItemRequest) ([]models.ReturnItem, decimal.Decimal, error) {
	total := decimal.Zero
	lines := make([]models.ReturnItem, 0, len(requested))
	inRequest := make(map[int64]int)

	for _, line := range requested {
		item, err := getOrderItem(ctx, tx, line.OrderItemID)
		if err == database.ErrOrderItemNotFound || (err == nil && item.OrderID != orderID) {
			return nil, decimal.Zero, ledger.ErrItemNotInOrder.With("order_item_id", line.OrderItemID)
		}
		if err != nil {
			return nil, decimal.Zero, err
		}

		prior, err := returnedQuantity(ctx, tx, item.ID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		prior += inRequest[item.ID]

		if err := ledger.CheckReturnQuantity(item.ID, item.Quantity, prior, line.Quantity); err != nil {
			return nil, decimal.Zero, err
		}
		inRequest[item.ID] += line.Quantity

		lines = append(lines, models.ReturnItem{
			OrderItemID:       item.ID,
			ProductID:         item.ProductID,
			Quantity:          line.Quantity,
			UnitPriceRefunded: item.UnitPrice,
		})
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return lines, total, nil
}

// returnedQuantity sums units of an order line taken back by returns that
// are not cancelled.
func returnedQuantity(ctx context.Context, q database.Querier, orderItemID int64) (int, error) {
	var returned int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(ri.quantity), 0)
		 FROM return_items ri
		 JOIN returns r ON r.id = ri.return_id
		 WHERE ri.order_item_id = $1
		   AND r.status <> $2`,
		orderItemID, models.ReturnStatusCancelled).Scan(&returned)
	if err != nil {
		return 0, fmt.Errorf("sum returned quantity: %w", err)
	}
	return returned, nil
}

// hasReturnLines reports whether any return, cancelled ones included,
// references the order line. Those rows keep the line from being deleted.
func hasReturnLines(ctx context.Context, q database.Querier, orderItemID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM return_items WHERE order_item_id = $1)`,
		orderItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check return lines: %w", err)
	}
	return exists, nil
}

func moveReturnStock(ctx context.Context, tx *sql.Tx, lines []models.ReturnItem, direction int) error {
	if direction == 0 {
		return nil
	}
	for _, line := range lines {
		if err := adjustStock(ctx, tx, line.ProductID, direction*line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReturnStatus moves a return through its lifecycle. Completing an
// item-based return restocks its units; cancelling a completed one takes them
// out again.
func UpdateReturnStatus(ctx context.Context, db *sql.DB, id int64, target string) (*models.Return, error) {
	var ret *models.Return

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current := &models.Return{}
		err := scanReturn(tx.QueryRowContext(ctx,
			`SELECT `+returnColumns+` FROM returns WHERE id = $1 FOR UPDATE`, id), current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrReturnNotFound
			}
			return fmt.Errorf("lock return: %w", err)
		}

		if err := ledger.CheckReturnTransition(current.Status, target); err != nil {
			return err
		}

		lines, err := getReturnItems(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := moveReturnStock(ctx, tx, lines, ledger.StockDirection(current.Status, target)); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE returns SET status = $1, updated_at = NOW() WHERE id = $2`, target, id)
		if err != nil {
			return fmt.Errorf("update return status: %w", err)
		}

		ret, err = getReturn(ctx, tx, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return ret, nil
}

func GetReturn(ctx context.Context, db *sql.DB, id int64) (*models.Return, error) {
	return getReturn(ctx, db, id)
}

func getReturn(ctx context.Context, q database.Querier, id int64) (*models.Return, error) {
	ret := &models.Return{}

	if err := scanReturn(q.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id), ret); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrReturnNotFound
		}
		return nil, fmt.Errorf("get return: %w", err)
	}

	items, err := getReturnItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	ret.Items = items

	return ret, nil
}

func getReturnItems(ctx context.Context, q database.Querier, returnID int64) ([]models.ReturnItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, return_id, order_item_id, product_id, quantity, unit_price_refunded
		 FROM return_items
		 WHERE return_id = $1
		 ORDER BY id`, returnID)
	if err != nil {
		return nil, fmt.Errorf("get return items: %w", err)
	}
	defer rows.Close()

	var items []models.ReturnItem
	for rows.Next() {
		var item models.ReturnItem
		err := rows.Scan(
			&item.ID,
			&item.ReturnID,
			&item.OrderItemID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPriceRefunded,
		)
		if err != nil {
			return nil, fmt.Errorf("scan return item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ListReturns(ctx context.Context, db *sql.DB, filter ReturnFilter) (*OffsetPage, error) {
	page := filter.Page.Normalize()

	where := `WHERE ($1::BIGINT IS NULL OR order_id = $1) AND ($2 = '' OR status = $2)`

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM returns `+where, filter.OrderID, filter.Status).Scan(&total); err != nil {
		return nil, fmt.Errorf("count returns: %w", err)
	}

	query := `SELECT ` + returnColumns + ` FROM returns ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := db.QueryContext(ctx, query, filter.OrderID, filter.Status, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	defer rows.Close()

	returns := []models.Return{}
	for rows.Next() {
		var ret models.Return
		if err := scanReturn(rows, &ret); err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		returns = append(returns, ret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(returns, total, page), nil
}
