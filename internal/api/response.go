package api

import (
	"errors"
	"net/http"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: msg})
}

var (
	errUserNotFound     = apperr.NotFound("USUARIO_NO_ENCONTRADO", "Usuario no encontrado")
	errProductNotFound  = apperr.NotFound("PRODUCTO_NO_ENCONTRADO", "Producto no encontrado")
	errCategoryNotFound = apperr.NotFound("CATEGORIA_NO_ENCONTRADA", "Categoría no encontrada")
	errClientNotFound   = apperr.NotFound("CLIENTE_NO_ENCONTRADO", "Cliente no encontrado")
	errVisitNotFound    = apperr.NotFound("VISITA_NO_ENCONTRADA", "Visita no encontrada")
	errOrderNotFound    = apperr.NotFound("PEDIDO_NO_ENCONTRADO", "Pedido no encontrado")
	errItemNotFound     = apperr.NotFound("ITEM_NO_ENCONTRADO", "Producto del pedido no encontrado")
	errPaymentNotFound  = apperr.NotFound("PAGO_NO_ENCONTRADO", "Pago no encontrado")
	errReturnNotFound   = apperr.NotFound("DEVOLUCION_NO_ENCONTRADA", "Devolución no encontrada")
	errStaleVersion     = apperr.Conflict("VERSION_DESACTUALIZADA", "El producto fue modificado por otra operación")
	errInProgress       = apperr.Conflict("PETICION_EN_CURSO", "Una petición con la misma clave de idempotencia está en curso")
	errRouteNotFound    = apperr.NotFound("RUTA_NO_ENCONTRADA", "Ruta no encontrada")
)

var sentinelErrors = map[error]*apperr.Error{
	database.ErrUserNotFound:         errUserNotFound,
	database.ErrProductNotFound:      errProductNotFound,
	database.ErrCategoryNotFound:     errCategoryNotFound,
	database.ErrClientNotFound:       errClientNotFound,
	database.ErrVisitNotFound:        errVisitNotFound,
	database.ErrOrderNotFound:        errOrderNotFound,
	database.ErrOrderItemNotFound:    errItemNotFound,
	database.ErrPaymentNotFound:      errPaymentNotFound,
	database.ErrReturnNotFound:       errReturnNotFound,
	database.ErrOptimisticLockFailed: errStaleVersion,
	idempotency.ErrInProgress:        errInProgress,
}

// toAppError maps err onto the categorical error sent to clients. The second
// result is false for unexpected errors, which become ERROR_SERVIDOR.
func toAppError(err error) (*apperr.Error, bool) {
	if appErr, ok := apperr.As(err); ok {
		return appErr, true
	}
	for sentinel, appErr := range sentinelErrors {
		if errors.Is(err, sentinel) {
			return appErr, true
		}
	}
	return apperr.Internal(), false
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr, known := toAppError(err)
	if !known {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID(c),
			"path":       c.FullPath(),
		}).WithError(err).Error("request failed")
	}
	if appErr.Status == http.StatusConflict && s.metrics != nil {
		s.metrics.Reject(appErr.Code)
	}
	abortWith(c, appErr)
}

func abortWith(c *gin.Context, appErr *apperr.Error) {
	c.AbortWithStatusJSON(appErr.Status, envelope{
		Success: false,
		Error:   appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}
