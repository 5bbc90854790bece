package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onetee-be/internal/auth"
	"onetee-be/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()

	t.Run("Missing Token", func(t *testing.T) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.IdentityFrom(r.Context())
			assert.False(t, ok, "Context should not contain identity")
			w.WriteHeader(http.StatusOK)
		})

		w := httptest.NewRecorder()
		AuthMiddleware(tokens)(next).ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		AuthMiddleware(tokens)(http.NotFoundHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Cookie", func(t *testing.T) {
		token, err := tokens.Generate(auth.Identity{UserID: userID, IsAdmin: true})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			assert.True(t, ok)
			assert.Equal(t, userID, id.UserID)
			assert.True(t, id.IsAdmin)
			assert.Equal(t, userID.String(), logger.UserIDFrom(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		AuthMiddleware(tokens)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Malformed Header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Basic user:pass")
		w := httptest.NewRecorder()

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := auth.IdentityFrom(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		})

		AuthMiddleware(tokens)(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("StrictTierOnWebhook", func(t *testing.T) {
		handler := NewRateLimiter("").Middleware(ok)

		codes := make([]int, 0, burstStrict+1)
		for i := 0; i < burstStrict+1; i++ {
			req := httptest.NewRequest("POST", "/shop/webhook/stripe", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}

		assert.Equal(t, http.StatusOK, codes[0])
		assert.Equal(t, http.StatusTooManyRequests, codes[burstStrict])
	})

	t.Run("SeparateBucketsPerIdentity", func(t *testing.T) {
		handler := NewRateLimiter("").Middleware(ok)

		for i := 0; i < burstStrict; i++ {
			req := httptest.NewRequest("POST", "/auth/login", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ResolveTier", func(t *testing.T) {
		l := NewRateLimiter("internal-key")

		internal := httptest.NewRequest("GET", "/shop/products", nil)
		internal.Header.Set("X-Service-Auth", "internal-key")
		_, _, tier := l.resolveRateTier(internal)
		assert.Equal(t, "internal", tier)

		_, _, tier = l.resolveRateTier(httptest.NewRequest("POST", "/shop/orders/abc/checkout", nil))
		assert.Equal(t, "strict", tier)

		_, _, tier = l.resolveRateTier(httptest.NewRequest("GET", "/shop/products", nil))
		assert.Equal(t, "general", tier)
	})

	t.Run("Cleanup", func(t *testing.T) {
		l := NewRateLimiter("")
		l.getVisitor("ip:1:general", limitGeneral, burstGeneral)

		l.now = func() time.Time { return time.Now().Add(visitorTTL + time.Second) }
		l.cleanup()

		assert.Empty(t, l.visitors)
	})
}
