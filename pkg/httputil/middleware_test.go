package httputil_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
)

// --- RequestID Tests ---

func TestRequestID(t *testing.T) {
	var seen string
	h := httputil.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.GetRequestID(r.Context())
	}))

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-1")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, "req-1", seen)
		assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	})

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})
}

// --- Logger Tests ---

func TestLogger_StoresRequestLogger(t *testing.T) {
	fallback := logger.Nop()
	var fromCtx *logger.Logger
	h := httputil.Logger(fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logger.FromContext(r.Context(), fallback)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/alerts", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotNil(t, fromCtx)
	assert.NotSame(t, fallback, fromCtx)
}

func TestLogger_SkipsHealthChecks(t *testing.T) {
	fallback := logger.Nop()
	var fromCtx *logger.Logger
	h := httputil.Logger(fallback, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logger.FromContext(r.Context(), fallback)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Same(t, fallback, fromCtx)
}

// --- Recoverer Tests ---

func TestRecoverer(t *testing.T) {
	h := httputil.Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/inventory/scan", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

// --- RequireRoles Tests ---

func TestRequireRoles(t *testing.T) {
	h := httputil.RequireRoles("admin", "lider")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusNoContent},
		{"lider", http.StatusNoContent},
		{"funcionario", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run("role "+tt.role, func(t *testing.T) {
			ctx := httputil.WithUserContext(context.Background(), "u1", "u1@example.com", tt.role)
			req := httptest.NewRequest(http.MethodPut, "/settings/alert-margin", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
