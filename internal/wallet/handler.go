package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	WalletNumber string `json:"wallet_number"`
	Balance      string `json:"balance"`
	AsOf         string `json:"as_of"`
}

// Me returns the authenticated caller's wallet number and balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(walletResponse{
		WalletNumber: balance.WalletNumber,
		Balance:      balance.Amount.StringFixed(2),
		AsOf:         balance.AsOf.Format(time.RFC3339Nano),
	})
}
