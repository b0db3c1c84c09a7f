package api

import (
	"github.com/Santi4567/Akima-sub001/internal/ledger"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
)

type orderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

type createOrderRequest struct {
	ClientID        int64              `json:"client_id" binding:"required,gt=0"`
	ShippingAddress string             `json:"shipping_address"`
	Notes           string             `json:"notes"`
	Items           []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type createOrderResponse struct {
	OrderID     int64                 `json:"order_id"`
	TotalAmount string                `json:"total_amount"`
	Warnings    []ledger.StockWarning `json:"warnings"`
}

type orderItemsResponse struct {
	Order    *models.Order         `json:"order"`
	Warnings []ledger.StockWarning `json:"warnings"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := store.CreateOrder(c.Request.Context(), s.db, store.CreateOrderRequest{
		ClientID:        req.ClientID,
		UserID:          currentUser(c).ID,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Items:           items,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	if len(result.Warnings) > 0 {
		s.log.WithField("order_id", result.Order.ID).
			WithField("warnings", len(result.Warnings)).
			Warn("order accepted beyond available stock")
	}

	created(c, "Pedido creado", createOrderResponse{
		OrderID:     result.Order.ID,
		TotalAmount: result.Order.TotalAmount.StringFixed(2),
		Warnings:    result.Warnings,
	})
}

func (s *Server) listOrders(c *gin.Context) {
	clientID, err := optionalID(c, "client_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	userID, err := optionalID(c, "user_id")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := store.ListOrders(c.Request.Context(), s.db, store.OrderFilter{
		Status:   c.Query("status"),
		ClientID: clientID,
		UserID:   userID,
		Page:     pageQuery(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	order, err := store.GetOrder(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, order)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req orderStatusRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	order, err := store.UpdateOrderStatus(c.Request.Context(), s.db, id, req.Status, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, order)
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	order, err := store.CancelOrder(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, order)
}

func (s *Server) addOrderItem(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req orderItemRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	result, err := store.AddOrderItem(c.Request.Context(), s.db, id, store.OrderItemRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Producto agregado al pedido", orderItemsResponse{Order: result.Order, Warnings: result.Warnings})
}

func (s *Server) removeOrderItem(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}
	itemID, err := idParam(c, "itemId")
	if err != nil {
		s.fail(c, err)
		return
	}

	order, err := store.RemoveOrderItem(c.Request.Context(), s.db, id, itemID)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, order)
}
