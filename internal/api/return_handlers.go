package api

import (
	"github.com/Santi4567/Akima-sub001/internal/ledger"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type returnItemRequest struct {
	OrderItemID int64 `json:"order_item_id" binding:"required,gt=0"`
	Quantity    int   `json:"quantity" binding:"required,gt=0"`
}

// createReturnRequest carries either items or total_refunded. The mode is
// checked before the field rules so a request mixing both gets
// MODO_DEVOLUCION_INVALIDO rather than a field error.
type createReturnRequest struct {
	OrderID       int64               `json:"order_id"`
	Reason        string              `json:"reason"`
	Status        string              `json:"status"`
	Items         []returnItemRequest `json:"items"`
	TotalRefunded *decimal.Decimal    `json:"total_refunded"`
}

type createReturnFields struct {
	OrderID int64               `json:"order_id" binding:"required,gt=0"`
	Reason  string              `json:"reason" binding:"required,max=1000"`
	Items   []returnItemRequest `json:"items" binding:"omitempty,dive"`
}

type returnStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type createReturnResponse struct {
	ReturnID      int64  `json:"return_id"`
	TotalRefunded string `json:"total_refunded"`
	Status        string `json:"status"`
}

func (s *Server) createReturn(c *gin.Context) {
	var req createReturnRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if (len(req.Items) > 0) == (req.TotalRefunded != nil) {
		s.fail(c, ledger.ErrReturnMode)
		return
	}
	if err := validationOf(createReturnFields{OrderID: req.OrderID, Reason: req.Reason, Items: req.Items}); err != nil {
		s.fail(c, err)
		return
	}

	items := make([]store.ReturnItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.ReturnItemRequest{OrderItemID: item.OrderItemID, Quantity: item.Quantity})
	}

	ret, err := store.CreateReturn(c.Request.Context(), s.db, store.CreateReturnRequest{
		OrderID:       req.OrderID,
		UserID:        currentUser(c).ID,
		Reason:        req.Reason,
		Status:        req.Status,
		Items:         items,
		TotalRefunded: req.TotalRefunded,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Devolución registrada", createReturnResponse{
		ReturnID:      ret.ID,
		TotalRefunded: ret.TotalRefunded.StringFixed(2),
		Status:        ret.Status,
	})
}

func (s *Server) listReturns(c *gin.Context) {
	orderID, err := optionalID(c, "order_id")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := store.ListReturns(c.Request.Context(), s.db, store.ReturnFilter{
		OrderID: orderID,
		Status:  c.Query("status"),
		Page:    pageQuery(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getReturn(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	ret, err := store.GetReturn(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, ret)
}

func (s *Server) updateReturnStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req returnStatusRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	ret, err := store.UpdateReturnStatus(c.Request.Context(), s.db, id, req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, ret)
}
