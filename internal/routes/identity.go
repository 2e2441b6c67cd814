package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/atlas-pay/atlas_pay/internal/identity"
	"github.com/atlas-pay/atlas_pay/internal/wallet"
)

// RegisterIdentityRoutes wires registration and auto-provisions a wallet for
// every new account.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Email             string `json:"email"`
			Password          string `json:"password"`
			ConfirmPassword   string `json:"confirm_password"`
			PIN               string `json:"pin"`
			FullName          string `json:"full_name"`
			PhoneNumber       string `json:"phone_number"`
			BusinessType      string `json:"business_type"`
			Country           string `json:"country"`
			StateProvince     string `json:"state_province"`
			PreferredLanguage string `json:"preferred_language"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		user, err := ids.Register(c.UserContext(), identity.RegisterInput{
			Email:             req.Email,
			Password:          req.Password,
			ConfirmPassword:   req.ConfirmPassword,
			PIN:               req.PIN,
			FullName:          req.FullName,
			PhoneNumber:       req.PhoneNumber,
			BusinessType:      req.BusinessType,
			Country:           req.Country,
			StateProvince:     req.StateProvince,
			PreferredLanguage: req.PreferredLanguage,
		})
		if err != nil {
			if errors.Is(err, identity.ErrEmailTaken) {
				return fiber.NewError(http.StatusConflict, "an account with this email already exists")
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		w, err := wallets.Create(c.UserContext(), user.ID)
		if err != nil {
			// Registration is one unit of work: without a wallet the
			// account must not survive.
			if delErr := ids.Delete(c.UserContext(), user.ID); delErr != nil && logger != nil {
				logger.Error("registration rollback failed",
					slog.String("user_id", user.ID), slog.Any("error", delErr))
			}
			return fiber.NewError(http.StatusInternalServerError, "could not provision wallet")
		}

		if logger != nil {
			logger.Info("identity.register completed",
				slog.String("user_id", user.ID),
				slog.String("wallet_number", w.WalletNumber),
				slog.Int("status", http.StatusCreated),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":       user.ID,
			"email":         user.Email,
			"full_name":     user.FullName,
			"wallet_number": w.WalletNumber,
		})
	})
}

// RegisterProfileRoute exposes the authenticated caller's account profile.
func RegisterProfileRoute(r fiber.Router, repo identity.Repository) {
	r.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := repo.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":            user.ID,
			"email":              user.Email,
			"full_name":          user.FullName,
			"phone_number":       user.PhoneNumber,
			"business_type":      user.BusinessType,
			"country":            user.Country,
			"state_province":     user.StateProvince,
			"preferred_language": user.PreferredLanguage,
			"created_at":         user.CreatedAt,
		})
	})
}
