package ledger

import (
	"testing"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCheckPaymentFullBalance(t *testing.T) {
	balance, err := CheckPayment(models.OrderStatusPending, dec("35"), decimal.Zero, dec("35"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.StringFixed(2))
}

func TestCheckPaymentPartial(t *testing.T) {
	balance, err := CheckPayment(models.OrderStatusShipped, dec("35"), dec("10"), dec("5.50"))
	require.NoError(t, err)
	assert.Equal(t, "19.50", balance.StringFixed(2))
}

func TestCheckPaymentTolerance(t *testing.T) {
	_, err := CheckPayment(models.OrderStatusPending, dec("10"), decimal.Zero, dec("10.01"))
	assert.NoError(t, err)

	_, err = CheckPayment(models.OrderStatusPending, dec("10"), decimal.Zero, dec("10.02"))
	assert.ErrorIs(t, err, ErrOverpayment)
}

func TestCheckPaymentOverpaymentReportsDebt(t *testing.T) {
	_, err := CheckPayment(models.OrderStatusCompleted, dec("35"), dec("35"), dec("1"))

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "SOBREPAGO", appErr.Code)
	assert.Equal(t, "0.00", appErr.Details["debt"])
}

func TestCheckPaymentRejections(t *testing.T) {
	_, err := CheckPayment(models.OrderStatusCancelled, dec("35"), decimal.Zero, dec("1"))
	assert.ErrorIs(t, err, ErrOrderCancelled)

	_, err = CheckPayment(models.OrderStatusPending, dec("35"), decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = CheckPayment(models.OrderStatusPending, dec("35"), decimal.Zero, dec("-3"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod("cash"))
	assert.True(t, ValidPaymentMethod("credit_card"))
	assert.False(t, ValidPaymentMethod("cheque"))
}

func TestCheckTotalCoversPaid(t *testing.T) {
	assert.NoError(t, CheckTotalCoversPaid(dec("30"), dec("30")))
	assert.ErrorIs(t, CheckTotalCoversPaid(dec("25"), dec("30")), ErrOverpayment)
}
