package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	basehdl "github.com/netfoundry/ziti-console/internal/api/base/handler"
)

// RequireJSONBody chặn các request ghi (POST/PUT/PATCH) không khai báo
// Content-Type application/json. Request đọc (GET/DELETE) đi qua tự do.
func RequireJSONBody() fiber.Handler {
	return func(c fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
			contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
			if !strings.Contains(contentType, fiber.MIMEApplicationJSON) {
				return basehdl.JSONResponse(c, fiber.StatusUnsupportedMediaType,
					basehdl.ErrorBody(basehdl.APIErrUnsupportedMediaType))
			}
		}
		return c.Next()
	}
}
