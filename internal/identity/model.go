package identity

import "time"

// User represents a registered account holder. Password and transfer PIN are
// stored as bcrypt hashes and never serialized back out.
type User struct {
	ID                string
	Email             string
	FullName          string
	PhoneNumber       string
	BusinessType      string
	Country           string
	StateProvince     string
	PreferredLanguage string
	PasswordHash      []byte
	PINHash           []byte
	TokenVersion      int
	CreatedAt         time.Time
}

// RegisterInput captures the registration payload after transport decoding.
type RegisterInput struct {
	Email             string
	Password          string
	ConfirmPassword   string
	PIN               string
	FullName          string
	PhoneNumber       string
	BusinessType      string
	Country           string
	StateProvince     string
	PreferredLanguage string
}
