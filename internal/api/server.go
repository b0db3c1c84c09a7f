// Package api exposes the sales backend over JSON/HTTP.
package api

import (
	"database/sql"
	"net/http"

	"github.com/Santi4567/Akima-sub001/internal/auth"
	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/Santi4567/Akima-sub001/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PermissionAdmin is the permission table as seen by the admin endpoints.
type PermissionAdmin interface {
	auth.Permissions
	Snapshot() map[string][]string
	SetRole(role string, permissions []string) error
	Reload() error
}

type Options struct {
	DB          *sql.DB
	Tokens      *auth.TokenIssuer
	Permissions PermissionAdmin
	Logger      *logrus.Logger
	// Idempotency and Metrics are optional.
	Idempotency idempotency.Store
	Metrics     *metrics.ServerMetrics
	UploadsDir  string
}

type Server struct {
	db         *sql.DB
	tokens     *auth.TokenIssuer
	perms      PermissionAdmin
	log        *logrus.Logger
	idem       idempotency.Store
	metrics    *metrics.ServerMetrics
	uploadsDir string
}

func NewServer(opts Options) *Server {
	useJSONFieldNames()

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		db:         opts.DB,
		tokens:     opts.Tokens,
		perms:      opts.Permissions,
		log:        logger,
		idem:       opts.Idempotency,
		metrics:    opts.Metrics,
		uploadsDir: opts.UploadsDir,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestIDMiddleware(), s.recoveryMiddleware(), s.loggerMiddleware(), corsMiddleware())
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.NoRoute(func(c *gin.Context) { abortWith(c, errRouteNotFound) })
	r.GET("/health", s.health)
	if s.uploadsDir != "" {
		r.Static("/uploads", s.uploadsDir)
	}

	api := r.Group("/api")
	api.POST("/auth/login", s.login)

	authed := api.Group("", s.authenticate())
	authed.GET("/auth/me", s.me)

	products := authed.Group("/products")
	{
		products.GET("", s.require(auth.PermProductsView), s.listProducts)
		products.GET("/:id", s.require(auth.PermProductsView), s.getProduct)
		products.POST("", s.require(auth.PermProductsManage), s.createProduct)
		products.PUT("/:id", s.require(auth.PermProductsManage), s.updateProduct)
		products.PUT("/:id/stock", s.require(auth.PermProductsStock), s.setProductStock)
		products.DELETE("/:id", s.require(auth.PermProductsManage), s.deleteProduct)
	}

	categories := authed.Group("/categories")
	{
		categories.GET("", s.require(auth.PermCategoriesView), s.listCategories)
		categories.GET("/:id", s.require(auth.PermCategoriesView), s.getCategory)
		categories.POST("", s.require(auth.PermCategoriesManage), s.createCategory)
		categories.PUT("/:id", s.require(auth.PermCategoriesManage), s.updateCategory)
		categories.DELETE("/:id", s.require(auth.PermCategoriesManage), s.deleteCategory)
	}

	clients := authed.Group("/clients")
	{
		clients.GET("", s.require(auth.PermClientsView), s.listClients)
		clients.GET("/:id", s.require(auth.PermClientsView), s.getClient)
		clients.GET("/:id/orders", s.require(auth.PermOrdersView), s.listClientOrders)
		clients.POST("", s.require(auth.PermClientsManage), s.createClient)
		clients.PUT("/:id", s.require(auth.PermClientsManage), s.updateClient)
		clients.DELETE("/:id", s.require(auth.PermClientsManage), s.deleteClient)
	}

	visits := authed.Group("/visits")
	{
		visits.GET("", s.require(auth.PermVisitsView), s.listVisits)
		visits.GET("/:id", s.require(auth.PermVisitsView), s.getVisit)
		visits.POST("", s.require(auth.PermVisitsManage), s.createVisit)
		visits.DELETE("/:id", s.require(auth.PermVisitsManage), s.deleteVisit)
	}

	users := authed.Group("/users")
	{
		users.GET("", s.require(auth.PermUsersView), s.listUsers)
		users.GET("/:id", s.require(auth.PermUsersView), s.getUser)
		users.POST("", s.require(auth.PermUsersManage), s.createUser)
		users.PUT("/:id", s.require(auth.PermUsersManage), s.updateUser)
		users.DELETE("/:id", s.require(auth.PermUsersManage), s.deactivateUser)
	}

	permissions := authed.Group("/permissions", s.require(auth.PermPermissionsAdmin))
	{
		permissions.GET("", s.listPermissions)
		permissions.PUT("/:role", s.setRolePermissions)
		permissions.POST("/reload", s.reloadPermissions)
	}

	orders := authed.Group("/orders")
	{
		orders.GET("", s.require(auth.PermOrdersView), s.listOrders)
		orders.GET("/:id", s.require(auth.PermOrdersView), s.getOrder)
		orders.POST("", s.require(auth.PermOrdersCreate), s.idempotent(), s.createOrder)
		orders.PUT("/:id/status", s.require(auth.PermOrdersStatus), s.updateOrderStatus)
		orders.PUT("/:id/cancel", s.require(auth.PermOrdersCancel), s.cancelOrder)
		orders.POST("/:id/items", s.require(auth.PermOrdersEdit), s.addOrderItem)
		orders.DELETE("/:id/items/:itemId", s.require(auth.PermOrdersEdit), s.removeOrderItem)
	}

	payments := authed.Group("/payments")
	{
		payments.GET("", s.require(auth.PermPaymentsView), s.listPayments)
		payments.GET("/:id", s.require(auth.PermPaymentsView), s.getPayment)
		payments.POST("", s.require(auth.PermPaymentsCreate), s.idempotent(), s.createPayment)
	}

	returns := authed.Group("/returns")
	{
		returns.GET("", s.require(auth.PermReturnsView), s.listReturns)
		returns.GET("/:id", s.require(auth.PermReturnsView), s.getReturn)
		returns.POST("", s.require(auth.PermReturnsCreate), s.idempotent(), s.createReturn)
		returns.PUT("/:id/status", s.require(auth.PermReturnsStatus), s.updateReturnStatus)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, envelope{Success: false, Error: "BASE_DE_DATOS_NO_DISPONIBLE"})
		return
	}
	ok(c, gin.H{"status": "ok"})
}
