package middleware_test

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/contentdb/internal/logger"
	"github.com/localnerve/contentdb/internal/middleware"
	"github.com/localnerve/contentdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(types.StatusCode(err))
		},
	})
	app.Use(middleware.VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.APIVersion(c))
	})

	tests := []struct {
		header string
		status int
		want   string
	}{
		{"", fiber.StatusOK, "1.0.0"},
		{"1", fiber.StatusOK, "1.0.0"},
		{"1.0", fiber.StatusOK, "1.0.0"},
		{"v1.2", fiber.StatusOK, "1.2.0"},
		{"2.0.0", fiber.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set(middleware.APIVersionHeader, tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.want != "" {
				assert.Equal(t, tt.want, resp.Header.Get(middleware.APIVersionHeader))
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(types.StatusCode(err))
		},
	})
	app.Use(middleware.RequestLogger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error {
		logger.FromContext(c.UserContext(), nil).Info("inside")
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return types.NewNotFoundError("nothing here")
	})

	req := httptest.NewRequest("GET", "/ok", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(middleware.RequestIDHeader))

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "inside", entries[0].Message)
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "Request", entries[1].Message)
	assert.EqualValues(t, fiber.StatusNoContent, entries[1].ContextMap()["status"])
	assert.Equal(t, "Request failed", entries[2].Message)
	assert.EqualValues(t, fiber.StatusNotFound, entries[2].ContextMap()["status"])
}
