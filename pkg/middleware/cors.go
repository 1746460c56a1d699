package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

// DefaultAllowedOrigins are used when no origins are configured
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",       // Development (vite dashboard)
	"https://app.funnelsync.io",   // Production
	"https://admin.funnelsync.io", // Admin dashboard
}

// CORSConfig returns the CORS configuration used by the application.
// Shared by main.go and tests.
func CORSConfig(origins ...string) middleware.CORSConfig {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
		ExposeHeaders: []string{
			"Content-Disposition",
			"Retry-After",
		},
	}
}
