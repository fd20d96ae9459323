package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContentTypeApp() *fiber.App {
	app := fiber.New()
	app.Use(RequireJSONBody())
	handler := func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/items", handler)
	app.Post("/items", handler)
	app.Put("/items/1", handler)
	app.Delete("/items/1", handler)
	return app
}

func TestRequireJSONBody(t *testing.T) {
	app := newContentTypeApp()

	t.Run("POST thiếu Content-Type trả về 415", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/items", strings.NewReader("{}"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("PUT với Content-Type sai trả về 415", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPut, "/items/1", strings.NewReader("x"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("POST với application/json đi qua", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/items", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("charset trong Content-Type vẫn hợp lệ", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/items", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, "application/json; charset=utf-8")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("GET và DELETE không bị kiểm tra", func(t *testing.T) {
		for _, tc := range []struct {
			method string
			path   string
		}{
			{fiber.MethodGet, "/items"},
			{fiber.MethodDelete, "/items/1"},
		} {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode, tc.method)
		}
	})
}
