package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for any failed email/password check.
	// It deliberately carries no detail about which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidPIN is returned when the supplied transfer PIN does not match
	// the stored hash.
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrValidation covers malformed registration input.
	ErrValidation = errors.New("validation failed")
)

const minPasswordLength = 8

// Service manages the account lifecycle: registration, login credential
// checks and transfer-PIN verification.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register validates the input, hashes both secrets and stores the user.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateRegistration(email, input); err != nil {
		return User{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:                uuid.NewString(),
		Email:             email,
		FullName:          strings.TrimSpace(input.FullName),
		PhoneNumber:       input.PhoneNumber,
		BusinessType:      input.BusinessType,
		Country:           input.Country,
		StateProvince:     input.StateProvince,
		PreferredLanguage: input.PreferredLanguage,
		PasswordHash:      passwordHash,
		PINHash:           pinHash,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies email/password and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// VerifyPIN compares the supplied PIN against the user's stored hash. The
// bcrypt comparison is constant-time; the raw PIN is never persisted.
func (s *Service) VerifyPIN(ctx context.Context, userID, pin string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

// Get returns the user by id.
// Delete removes a user account. Registration uses it to roll back when
// wallet provisioning fails after the user row was committed.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func validateRegistration(email string, input RegisterInput) error {
	if email == "" || !strings.Contains(email, "@") {
		return errors.Join(ErrValidation, errors.New("a valid email is required"))
	}
	if len(input.Password) < minPasswordLength {
		return errors.Join(ErrValidation, errors.New("password must be at least 8 characters"))
	}
	if input.Password != input.ConfirmPassword {
		return errors.Join(ErrValidation, errors.New("password fields didn't match"))
	}
	if !isFourDigitPIN(input.PIN) {
		return errors.Join(ErrValidation, errors.New("PIN must be exactly 4 digits"))
	}
	if strings.TrimSpace(input.FullName) == "" {
		return errors.Join(ErrValidation, errors.New("full name is required"))
	}
	return nil
}

func isFourDigitPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
