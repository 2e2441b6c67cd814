package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/atlas-pay/atlas_pay/internal/transfer"
)

// RegisterTransactionRoutes wires the transaction history endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transfer.Handler) {
	r.Get("/transactions", h.List)
	r.Get("/transactions/:transactionId", h.Get)
}
