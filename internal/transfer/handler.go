package transfer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/atlas-pay/atlas_pay/internal/identity"
	"github.com/atlas-pay/atlas_pay/internal/ledger"
)

// Handler exposes the verify/transfer endpoints and the transaction log.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type verifyRequest struct {
	WalletNumber string `json:"wallet_number"`
}

// Verify resolves a recipient's display name before the client commits funds.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.WalletNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "wallet_number is required")
	}

	name, err := h.service.VerifyRecipient(c.UserContext(), req.WalletNumber)
	if err != nil {
		if errors.Is(err, ErrRecipientNotFound) {
			return fiber.NewError(http.StatusNotFound, "recipient not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"recipient_name": name})
}

type transferRequest struct {
	WalletNumber string `json:"wallet_number"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	PIN          string `json:"pin"`
}

// Transfer executes the PIN-authorized transfer step.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount must be a decimal number")
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderID:     uid,
		WalletNumber: req.WalletNumber,
		Amount:       amount,
		Description:  req.Description,
		PIN:          req.PIN,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive with at most two decimal places")
		case errors.Is(err, identity.ErrInvalidPIN):
			return fiber.NewError(http.StatusForbidden, "invalid PIN")
		case errors.Is(err, ErrRecipientNotFound):
			return fiber.NewError(http.StatusNotFound, "recipient not found")
		case errors.Is(err, ErrSelfTransfer), errors.Is(err, ledger.ErrSameAccount):
			return fiber.NewError(http.StatusBadRequest, "cannot transfer to own wallet")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"new_balance":    res.NewBalance.StringFixed(2),
		"recipient_name": res.RecipientName,
	})
}

type transactionResponse struct {
	ID                   string  `json:"id"`
	SenderID             *string `json:"sender_id,omitempty"`
	ReceiverID           *string `json:"receiver_id,omitempty"`
	Amount               string  `json:"amount"`
	ReceiverName         string  `json:"receiver_name"`
	ReceiverWalletNumber string  `json:"receiver_wallet_number"`
	Description          string  `json:"description,omitempty"`
	Kind                 string  `json:"kind"`
	CreatedAt            string  `json:"created_at"`
}

// List returns the caller's transaction history, newest first. The direction
// query parameter accepts incoming, outgoing or all (default).
func (h *Handler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	dir := ledger.Direction(c.Query("direction", string(ledger.DirectionAll)))

	list, err := h.service.History(c.UserContext(), uid, dir)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]transactionResponse, 0, len(list))
	for _, tx := range list {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Get returns a single transaction visible only to its participants.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	txID := c.Params("transactionId")

	tx, err := h.service.Get(c.UserContext(), uid, txID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   tx.ID,
		SenderID:             tx.SenderID,
		ReceiverID:           tx.ReceiverID,
		Amount:               tx.Amount.StringFixed(2),
		ReceiverName:         tx.ReceiverName,
		ReceiverWalletNumber: tx.ReceiverWalletNumber,
		Description:          tx.Description,
		Kind:                 tx.Kind,
		CreatedAt:            tx.CreatedAt.Format(time.RFC3339Nano),
	}
}
