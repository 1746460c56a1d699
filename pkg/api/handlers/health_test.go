package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/funnelsync/pkg/cache"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		db         Pinger
		cache      Pinger
		wantStatus int
		wantDB     string
		wantRedis  string
	}{
		{name: "all healthy", db: up, cache: up, wantStatus: http.StatusOK, wantDB: "healthy", wantRedis: "healthy"},
		{name: "no redis configured", db: up, cache: nil, wantStatus: http.StatusOK, wantDB: "healthy", wantRedis: "disabled"},
		{name: "database down", db: down, cache: up, wantStatus: http.StatusServiceUnavailable, wantDB: "unhealthy", wantRedis: "healthy"},
		{name: "redis down", db: up, cache: down, wantStatus: http.StatusServiceUnavailable, wantDB: "healthy", wantRedis: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/health", NewHealthHandler(tt.db, tt.cache, "test").Health)

			rec := serve(e, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDB, body["database"])
			assert.Equal(t, tt.wantRedis, body["redis"])
			assert.Equal(t, "test", body["version"])
		})
	}
}

func TestHealthHandler_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	e := echo.New()
	e.GET("/health", NewHealthHandler(pingFunc(func(context.Context) error { return nil }), client, "test").Health)

	rec := serve(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = serve(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
