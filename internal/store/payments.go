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

const paymentColumns = `id, order_id, user_id, amount, method, reference, notes, payment_date`

type CreatePaymentRequest struct {
	OrderID   int64
	UserID    int64
	Amount    decimal.Decimal
	Method    string
	Reference string
	Notes     string
}

type PaymentResult struct {
	Payment    *models.Payment
	NewBalance decimal.Decimal
}

type PaymentFilter struct {
	OrderID *int64
	Page
}

func scanPayment(row rowScanner, payment *models.Payment) error {
	return row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Method,
		&payment.Reference,
		&payment.Notes,
		&payment.PaymentDate,
	)
}

// CreatePayment records money received for an order. The order row stays
// locked from the debt calculation until the insert commits, so two payments
// racing on one order cannot both pass the overpayment check.
func CreatePayment(ctx context.Context, db *sql.DB, req CreatePaymentRequest) (*PaymentResult, error) {
	if !ledger.ValidPaymentMethod(req.Method) {
		return nil, ledger.ErrInvalidMethod.With("method", req.Method)
	}

	var result *PaymentResult

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}

		paid, err := sumPayments(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		newBalance, err := ledger.CheckPayment(order.Status, order.TotalAmount, paid, req.Amount)
		if err != nil {
			return err
		}

		payment := &models.Payment{}
		row := tx.QueryRowContext(ctx,
			`INSERT INTO payments (order_id, user_id, amount, method, reference, notes, payment_date)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING `+paymentColumns,
			order.ID, req.UserID, req.Amount, req.Method, req.Reference, req.Notes)
		if err := scanPayment(row, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		result = &PaymentResult{Payment: payment, NewBalance: newBalance}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func GetPayment(ctx context.Context, db *sql.DB, id int64) (*models.Payment, error) {
	payment := &models.Payment{}

	if err := scanPayment(db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id), payment); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return payment, nil
}

func ListPayments(ctx context.Context, db *sql.DB, filter PaymentFilter) (*OffsetPage, error) {
	page := filter.Page.Normalize()

	where := `WHERE ($1::BIGINT IS NULL OR order_id = $1)`

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments `+where, filter.OrderID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments ` + where + `
		ORDER BY payment_date DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, filter.OrderID, page.PageSize, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var payment models.Payment
		if err := scanPayment(rows, &payment); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(payments, total, page), nil
}

func sumPayments(ctx context.Context, q database.Querier, orderID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`, orderID).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return paid, nil
}
