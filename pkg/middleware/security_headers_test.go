package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	defaults := DefaultSecurityHeadersConfig()

	tests := []struct {
		name   string
		config SecurityHeadersConfig
		want   SecurityHeadersConfig
	}{
		{
			name:   "defaults",
			config: SecurityHeadersConfig{},
			want:   defaults,
		},
		{
			name:   "custom CSP keeps other defaults",
			config: SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'self'"},
			want: SecurityHeadersConfig{
				ContentSecurityPolicy: "default-src 'self'",
				ReferrerPolicy:        defaults.ReferrerPolicy,
				PermissionsPolicy:     defaults.PermissionsPolicy,
			},
		},
		{
			name: "all custom",
			config: SecurityHeadersConfig{
				ContentSecurityPolicy: "default-src 'self'",
				ReferrerPolicy:        "strict-origin",
				PermissionsPolicy:     "camera=(self)",
			},
			want: SecurityHeadersConfig{
				ContentSecurityPolicy: "default-src 'self'",
				ReferrerPolicy:        "strict-origin",
				PermissionsPolicy:     "camera=(self)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := SecurityHeaders(tt.config)(func(c echo.Context) error {
				return c.String(http.StatusOK, "OK")
			})

			assert.NoError(t, handler(c))
			assert.Equal(t, tt.want.ContentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
			assert.Equal(t, tt.want.ReferrerPolicy, rec.Header().Get("Referrer-Policy"))
			assert.Equal(t, tt.want.PermissionsPolicy, rec.Header().Get("Permissions-Policy"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestSecurityHeaders_HandlerError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeaders(SecurityHeadersConfig{})(func(c echo.Context) error {
		return echo.ErrInternalServerError
	})

	err := handler(c)
	assert.Error(t, err)
	// Headers are set even when the handler errors
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Permissions-Policy"))
}

func TestSecurityHeaders_DefaultConfig(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig()

	assert.Contains(t, cfg.ContentSecurityPolicy, "default-src 'none'")
	assert.Contains(t, cfg.ContentSecurityPolicy, "frame-ancestors 'none'")
	assert.Equal(t, "no-referrer", cfg.ReferrerPolicy)
	assert.Contains(t, cfg.PermissionsPolicy, "camera=()")
}
