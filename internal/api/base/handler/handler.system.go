package basehdl

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/netfoundry/ziti-console/internal/global"
)

// HandleHealth kiểm tra tình trạng hệ thống.
// Trả về trạng thái của API và database connection, 503 khi database
// không phản hồi để load balancer loại instance ra khỏi pool.
func HandleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthData := fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": fiber.Map{
			"api": "ok",
		},
	}

	// Kiểm tra MongoDB connection
	if global.MongoDB_Session != nil {
		err := global.MongoDB_Session.Ping(ctx, nil)
		if err != nil {
			healthData["status"] = "degraded"
			healthData["services"].(fiber.Map)["database"] = "error"
			return JSONResponse(c, fiber.StatusServiceUnavailable, SuccessBody(nil, healthData))
		}
		healthData["services"].(fiber.Map)["database"] = "ok"
	} else {
		healthData["services"].(fiber.Map)["database"] = "not_initialized"
	}

	return JSONResponse(c, fiber.StatusOK, SuccessBody(nil, healthData))
}
