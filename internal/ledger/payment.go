package ledger

import (
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/shopspring/decimal"
)

// PaymentTolerance absorbs rounding when a client pays the exact balance.
var PaymentTolerance = decimal.New(1, -2)

func ValidPaymentMethod(method string) bool {
	switch method {
	case models.PaymentMethodCash, models.PaymentMethodTransfer, models.PaymentMethodCreditCard:
		return true
	}
	return false
}

// Debt is what is still owed on an order.
func Debt(total, paid decimal.Decimal) decimal.Decimal {
	return total.Sub(paid)
}

// CheckPayment validates a new payment against the order and returns the
// balance left once it is recorded.
func CheckPayment(orderStatus string, total, paid, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if orderStatus == models.OrderStatusCancelled {
		return decimal.Zero, ErrOrderCancelled
	}

	debt := Debt(total, paid)
	if amount.GreaterThan(debt.Add(PaymentTolerance)) {
		return decimal.Zero, ErrOverpayment.With("debt", debt.StringFixed(2))
	}

	return debt.Sub(amount), nil
}

// CheckTotalCoversPaid guards edits that lower an order's total below what
// has already been collected.
func CheckTotalCoversPaid(total, paid decimal.Decimal) error {
	if paid.GreaterThan(total.Add(PaymentTolerance)) {
		return ErrOverpayment.With("paid", paid.StringFixed(2)).With("total", total.StringFixed(2))
	}
	return nil
}
