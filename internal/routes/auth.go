package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/atlas-pay/atlas_pay/internal/auth"
)

// RegisterAuthRoutes wires the public login/refresh endpoints. Login is rate
// limited per email or client IP.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Post("/auth/login", rateLimiter, h.Login)
	r.Post("/auth/refresh", h.Refresh)
}
