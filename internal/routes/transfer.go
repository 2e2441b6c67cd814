package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/atlas-pay/atlas_pay/internal/transfer"
)

// RegisterTransferRoutes wires the two-step verify/transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers/verify", h.Verify)
	r.Post("/transfers", h.Transfer)
}
