package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/auth"
	"github.com/Santi4567/Akima-sub001/internal/idempotency"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPermissions map[string][]string

func (p staticPermissions) HasPermission(role, permission string) bool {
	for _, perm := range p[role] {
		if perm == permission {
			return true
		}
	}
	return false
}

func (p staticPermissions) Snapshot() map[string][]string { return p }
func (p staticPermissions) SetRole(string, []string) error { return nil }
func (p staticPermissions) Reload() error                  { return nil }

type memoryIdempotency struct {
	mu    sync.Mutex
	items map[string]*idempotency.Response
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{items: map[string]*idempotency.Response{}}
}

func (m *memoryIdempotency) Begin(_ context.Context, key string) (*idempotency.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp, found := m.items[key]
	if !found {
		m.items[key] = nil
		return nil, nil
	}
	if resp == nil {
		return nil, idempotency.ErrInProgress
	}
	return resp, nil
}

func (m *memoryIdempotency) Save(ctx context.Context, key string, resp idempotency.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = &resp
	return nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testServer(opts Options) *Server {
	gin.SetMode(gin.TestMode)
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Tokens == nil {
		opts.Tokens = auth.NewTokenIssuer("test-secret", time.Hour)
	}
	if opts.Permissions == nil {
		opts.Permissions = staticPermissions{}
	}
	return NewServer(opts)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxUser, user)
		c.Next()
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, requestID(c)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(requestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestRecoveryReturnsServerError(t *testing.T) {
	s := testServer(Options{})
	r := gin.New()
	r.Use(s.recoveryMiddleware())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "ERROR_SERVIDOR", env.Error)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthenticateRejectsMissingAndBadTokens(t *testing.T) {
	s := testServer(Options{})
	r := gin.New()
	r.GET("/", s.authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]struct {
		header string
		code   string
	}{
		"missing":    {"", "NO_AUTORIZADO"},
		"not bearer": {"Basic abc", "TOKEN_INVALIDO"},
		"garbage":    {"Bearer abc.def.ghi", "TOKEN_INVALIDO"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tc.code, decodeEnvelope(t, rec).Error)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	s := testServer(Options{Permissions: staticPermissions{
		models.RoleWarehouse: {auth.PermOrdersView},
	}})

	r := gin.New()
	r.GET("/orders", asUser(&models.User{ID: 1, Role: models.RoleWarehouse}), s.require(auth.PermOrdersView), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/payments", asUser(&models.User{ID: 1, Role: models.RoleWarehouse}), s.require(auth.PermPaymentsCreate), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "PERMISO_DENEGADO", env.Error)
	assert.Equal(t, auth.PermPaymentsCreate, env.Details["permission"])
}

func TestIdempotentReplaysSuccess(t *testing.T) {
	store := newMemoryIdempotency()
	s := testServer(Options{Idempotency: store})

	calls := 0
	r := gin.New()
	r.POST("/payments", asUser(&models.User{ID: 9}), s.idempotent(), func(c *gin.Context) {
		calls++
		created(c, "Pago registrado", gin.H{"payment_id": calls})
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		if key != "" {
			req.Header.Set(idempotency.Header, key)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send("pay-1")
	second := send("pay-1")

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)

	send("")
	send("pay-2")
	assert.Equal(t, 3, calls)
}

func TestIdempotentReleasesFailures(t *testing.T) {
	store := newMemoryIdempotency()
	s := testServer(Options{Idempotency: store})

	calls := 0
	r := gin.New()
	r.POST("/payments", asUser(&models.User{ID: 9}), s.idempotent(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			abortWith(c, errInvalidValue)
			return
		}
		created(c, "Pago registrado", nil)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		req.Header.Set(idempotency.Header, "pay-1")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotentInProgress(t *testing.T) {
	store := newMemoryIdempotency()
	_, err := store.Begin(context.Background(), "9:/payments:pay-1")
	require.NoError(t, err)

	s := testServer(Options{Idempotency: store})
	r := gin.New()
	r.POST("/payments", asUser(&models.User{ID: 9}), s.idempotent(), func(c *gin.Context) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	req.Header.Set(idempotency.Header, "pay-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PETICION_EN_CURSO", decodeEnvelope(t, rec).Error)
}

func TestIdempotentReleasesAfterPanic(t *testing.T) {
	store := newMemoryIdempotency()
	s := testServer(Options{Idempotency: store})

	calls := 0
	r := gin.New()
	r.Use(s.recoveryMiddleware())
	r.POST("/orders", asUser(&models.User{ID: 9}), s.idempotent(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		created(c, "Pedido creado", nil)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(idempotency.Header, "order-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusInternalServerError, first.Code)

	second := send()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotentSavesAfterClientDisconnect(t *testing.T) {
	store := newMemoryIdempotency()
	s := testServer(Options{Idempotency: store})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	r := gin.New()
	r.POST("/payments", asUser(&models.User{ID: 9}), s.idempotent(), func(c *gin.Context) {
		calls++
		cancel()
		created(c, "Pago registrado", gin.H{"payment_id": 1})
	})

	req := httptest.NewRequest(http.MethodPost, "/payments", nil).WithContext(ctx)
	req.Header.Set(idempotency.Header, "pay-1")
	first := httptest.NewRecorder()
	r.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	retry := httptest.NewRequest(http.MethodPost, "/payments", nil)
	retry.Header.Set(idempotency.Header, "pay-1")
	second := httptest.NewRecorder()
	r.ServeHTTP(second, retry)

	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestUnknownRoute(t *testing.T) {
	s := testServer(Options{})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUTA_NO_ENCONTRADA", decodeEnvelope(t, rec).Error)
}
