package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpost/internal/apperr"
	"lexpost/internal/auth"
	"lexpost/internal/authz"
	"lexpost/internal/domain"
	"lexpost/internal/logger"
	"lexpost/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type identityFunc func(ctx context.Context, token string) (*auth.UserContext, error)

func (f identityFunc) GetUserContext(ctx context.Context, token string) (*auth.UserContext, error) {
	return f(ctx, token)
}

type provisionFunc func(ctx context.Context, uc *auth.UserContext) (*models.Profile, error)

func (f provisionFunc) EnsureProfile(ctx context.Context, uc *auth.UserContext) (*models.Profile, error) {
	return f(ctx, uc)
}

func tokenIdentity(valid string) identityFunc {
	return func(_ context.Context, token string) (*auth.UserContext, error) {
		if token != valid {
			return nil, apperr.Auth("invalid or expired token")
		}
		return &auth.UserContext{ID: 7, Email: "ann@example.com", Role: domain.RoleAdmin}, nil
	}
}

// storedAs returns a provisioner that keeps the stored role regardless of the token's claim.
func storedAs(role domain.Role) provisionFunc {
	return func(_ context.Context, uc *auth.UserContext) (*models.Profile, error) {
		p := &models.Profile{Email: uc.Email, Role: role}
		p.ID = uc.ID
		return p, nil
	}
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.Use(AuthRequired(tokenIdentity("good"), storedAs(domain.RoleUser)))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetRole(c), "email": GetEmail(c)})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Equal(t, string(apperr.TypeAuth), decodeError(t, w).Error.Type)
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, float64(7), body["id"])
			assert.Equal(t, string(domain.RoleUser), body["role"], "stored role wins over token claim")
			assert.Equal(t, "ann@example.com", body["email"])
		})
	}
}

func TestAuthRequired_ProvisionFailureHidesCause(t *testing.T) {
	r := gin.New()
	r.Use(AuthRequired(tokenIdentity("good"), provisionFunc(func(context.Context, *auth.UserContext) (*models.Profile, error) {
		return nil, errors.New("dial tcp 10.0.0.3:3306: connection refused")
	})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestRequireCapability(t *testing.T) {
	az := authz.MustNew()
	for _, tt := range []struct {
		role   domain.Role
		status int
	}{
		{domain.RoleUser, http.StatusForbidden},
		{domain.RoleEmployee, http.StatusForbidden},
		{domain.RoleAdmin, http.StatusOK},
	} {
		t.Run(string(tt.role), func(t *testing.T) {
			r := gin.New()
			r.Use(AuthRequired(tokenIdentity("good"), storedAs(tt.role)))
			r.GET("/admin", RequireCapability(az, authz.AdminDashboard), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer good")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, string(apperr.TypeAuthorization), decodeError(t, w).Error.Type)
			}
		})
	}
}

func TestAbortWithError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		typ     apperr.Type
		message string
	}{
		{"validation", apperr.Validation("title is required"), 400, apperr.TypeValidation, "title is required"},
		{"not found", apperr.NotFound("letter not found"), 404, apperr.TypeNotFound, "letter not found"},
		{"invalid state", apperr.InvalidState("letter is completed"), 409, apperr.TypeInvalidState, "letter is completed"},
		{"invariant", apperr.InvariantViolation("coupon employee missing"), 500, apperr.TypeInvariantViolation, "internal server error"},
		{"plain error", errors.New("boom"), 500, apperr.TypeInternal, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { AbortWithError(c, tt.err) })
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, string(tt.typ), body.Error.Type)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger.Nop()))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.Nop()))
	r.GET("/panic", func(*gin.Context) { panic("secret detail") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
}

func TestInMemoryRateLimiter(t *testing.T) {
	l := NewInMemoryRateLimiter(2, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, retry := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestRateLimit_Middleware(t *testing.T) {
	l := NewInMemoryRateLimiter(1, time.Minute)
	defer l.Stop()
	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/letters/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/letters/1", "/letters/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	c, err := httpRequestsTotal.GetMetricWithLabelValues(http.MethodGet, "/letters/:id", "200")
	require.NoError(t, err)
	assert.NotNil(t, c)
}
