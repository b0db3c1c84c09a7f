package api

import (
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	SKU         string           `json:"sku" binding:"required,max=64"`
	Name        string           `json:"name" binding:"required,max=200"`
	Description string           `json:"description"`
	CategoryID  *int64           `json:"category_id" binding:"omitempty,gt=0"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Stock       int              `json:"stock_quantity"`
	ImageURL    string           `json:"image_url" binding:"omitempty,max=500"`
}

type updateProductRequest struct {
	SKU         *string          `json:"sku" binding:"omitempty,min=1,max=64"`
	Name        *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	CategoryID  *int64           `json:"category_id" binding:"omitempty,gt=0"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url" binding:"omitempty,max=500"`
}

type setStockRequest struct {
	StockQuantity *int `json:"stock_quantity" binding:"required"`
	Version       int  `json:"version" binding:"required,gt=0"`
}

func (s *Server) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if req.Price.IsNegative() {
		s.fail(c, errInvalidValue.With("fields", []string{"price"}))
		return
	}

	product, err := store.CreateProduct(c.Request.Context(), s.db, store.ProductInput{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       *req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Producto creado", product)
}

func (s *Server) listProducts(c *gin.Context) {
	categoryID, err := optionalID(c, "category_id")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := store.ListProducts(c.Request.Context(), s.db, store.ProductFilter{
		CategoryID: categoryID,
		Search:     c.Query("search"),
		Page:       pageQuery(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getProduct(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	product, err := store.GetProduct(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req updateProductRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		s.fail(c, errInvalidValue.With("fields", []string{"price"}))
		return
	}

	product, err := store.UpdateProduct(c.Request.Context(), s.db, id, store.ProductUpdate{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, product)
}

// setProductStock records an inventory count. The caller sends the version it
// read; a concurrent change makes the write fail with VERSION_DESACTUALIZADA.
func (s *Server) setProductStock(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req setStockRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := store.UpdateStockOptimistic(ctx, s.db, id, *req.StockQuantity, req.Version); err != nil {
		s.fail(c, err)
		return
	}

	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := store.DeleteProduct(c.Request.Context(), s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	message(c, "Producto eliminado")
}

type categoryRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=120"`
	Description *string `json:"description"`
}

func (s *Server) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if req.Name == nil {
		s.fail(c, errMissingFields.With("fields", []string{"name"}))
		return
	}

	var description string
	if req.Description != nil {
		description = *req.Description
	}

	category, err := store.CreateCategory(c.Request.Context(), s.db, *req.Name, description)
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Categoría creada", category)
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := store.ListCategories(c.Request.Context(), s.db)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, categories)
}

func (s *Server) getCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	category, err := store.GetCategory(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, category)
}

func (s *Server) updateCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req categoryRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	category, err := store.UpdateCategory(c.Request.Context(), s.db, id, req.Name, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, category)
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := store.DeleteCategory(c.Request.Context(), s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	message(c, "Categoría eliminada")
}
