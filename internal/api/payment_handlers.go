package api

import (
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	OrderID   int64            `json:"order_id" binding:"required,gt=0"`
	Amount    *decimal.Decimal `json:"amount" binding:"required"`
	Method    string           `json:"method" binding:"required"`
	Reference string           `json:"reference" binding:"max=120"`
	Notes     string           `json:"notes"`
}

type createPaymentResponse struct {
	PaymentID  int64  `json:"payment_id"`
	NewBalance string `json:"new_balance"`
}

func (s *Server) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	result, err := store.CreatePayment(c.Request.Context(), s.db, store.CreatePaymentRequest{
		OrderID:   req.OrderID,
		UserID:    currentUser(c).ID,
		Amount:    *req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Notes:     req.Notes,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Pago registrado", createPaymentResponse{
		PaymentID:  result.Payment.ID,
		NewBalance: result.NewBalance.StringFixed(2),
	})
}

func (s *Server) listPayments(c *gin.Context) {
	orderID, err := optionalID(c, "order_id")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := store.ListPayments(c.Request.Context(), s.db, store.PaymentFilter{
		OrderID: orderID,
		Page:    pageQuery(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getPayment(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	payment, err := store.GetPayment(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, payment)
}
