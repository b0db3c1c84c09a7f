package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUser         = "user"
)

var (
	errNoToken      = apperr.Unauthorized("NO_AUTORIZADO", "Se requiere autenticación")
	errInvalidToken = apperr.Unauthorized("TOKEN_INVALIDO", "Token inválido o expirado")
	errInactiveUser = apperr.Unauthorized("USUARIO_INACTIVO", "El usuario está desactivado")
	errForbidden    = apperr.Forbidden("PERMISO_DENEGADO", "No tiene permiso para esta operación")
	errKeyTooLong   = apperr.BadRequest("VALOR_INVALIDO", "La clave de idempotencia es demasiado larga")
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"request_id": requestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if user := currentUser(c); user != nil {
			fields["user_id"] = user.ID
		}

		entry := s.log.WithFields(fields)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID(c),
					"stack":      string(debug.Stack()),
				}).Error(fmt.Sprintf("panic: %v", recovered))
				abortWith(c, apperr.Internal())
			}
		}()
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authenticate resolves the bearer token to an active user. Role changes and
// deactivation take effect on the next request.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWith(c, errNoToken)
			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			abortWith(c, errInvalidToken)
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			abortWith(c, errInvalidToken)
			return
		}

		user, err := store.GetUser(c.Request.Context(), s.db, claims.UserID)
		if err != nil {
			if appErr, known := toAppError(err); known && appErr == errUserNotFound {
				abortWith(c, errInvalidToken)
				return
			}
			s.fail(c, err)
			return
		}
		if !user.Active {
			abortWith(c, errInactiveUser)
			return
		}

		c.Set(ctxUser, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func (s *Server) require(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !s.perms.HasPermission(user.Role, permission) {
			abortWith(c, errForbidden.With("permission", permission))
			return
		}
		c.Next()
	}
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *capturingWriter) WriteString(data string) (int, error) {
	w.body.WriteString(data)
	return w.ResponseWriter.WriteString(data)
}

// idempotent replays the stored response of a write that already ran with the
// same Idempotency-Key. Only successful responses are stored; failures release
// the key so the client can retry. Without a configured store the header is
// ignored.
func (s *Server) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(idempotency.Header))
		if s.idem == nil || header == "" {
			c.Next()
			return
		}
		if len(header) > 128 {
			abortWith(c, errKeyTooLong.With("max_length", 128))
			return
		}

		var userID int64
		if user := currentUser(c); user != nil {
			userID = user.ID
		}
		key := fmt.Sprintf("%d:%s:%s", userID, c.FullPath(), header)
		ctx := c.Request.Context()

		saved, err := s.idem.Begin(ctx, key)
		switch {
		case err == idempotency.ErrInProgress:
			s.fail(c, err)
			return
		case err != nil:
			s.log.WithError(err).WithField("request_id", requestID(c)).Warn("idempotency store unavailable")
			c.Next()
			return
		case saved != nil:
			c.Header("Idempotent-Replayed", "true")
			c.Data(saved.Status, "application/json; charset=utf-8", saved.Body)
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		// The outcome is recorded even if the client went away or the
		// handler panicked; the panic is rethrown for the recovery middleware.
		storeCtx := context.WithoutCancel(ctx)
		defer func() {
			recovered := recover()

			status := writer.Status()
			var err error
			if recovered == nil && status >= http.StatusOK && status < http.StatusMultipleChoices {
				err = s.idem.Save(storeCtx, key, idempotency.Response{Status: status, Body: writer.body.Bytes()})
			} else {
				err = s.idem.Release(storeCtx, key)
			}
			if err != nil {
				s.log.WithError(err).WithField("request_id", requestID(c)).Warn("idempotency store update failed")
			}

			if recovered != nil {
				panic(recovered)
			}
		}()

		c.Next()
	}
}
