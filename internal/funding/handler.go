package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/atlas-pay/atlas_pay/internal/ledger"
	"github.com/atlas-pay/atlas_pay/internal/transfer"
)

// Handler exposes the deposit endpoint.
type Handler struct {
	service   *Service
	transfers *transfer.Service
}

// NewHandler constructs a funding handler. The transfer service is used to
// invalidate the depositor's cached transaction history.
func NewHandler(service *Service, transfers *transfer.Service) *Handler {
	return &Handler{service: service, transfers: transfers}
}

type depositRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Deposit credits the authenticated caller's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount must be a decimal number")
	}

	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		OwnerID:     uid,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			return fiber.NewError(http.StatusBadRequest, "amount must be positive with at most two decimal places")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	if h.transfers != nil {
		h.transfers.InvalidateHistory(c.UserContext(), uid)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"new_balance":    res.NewBalance.StringFixed(2),
	})
}
