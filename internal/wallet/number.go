package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// numberDigits is the fixed width of public wallet numbers.
const numberDigits = 6

var numberSpace = big.NewInt(1_000_000)

// newWalletNumber draws a random zero-padded 6-digit wallet number.
// Uniqueness is enforced by the repository; callers retry on collision.
func newWalletNumber() (string, error) {
	n, err := rand.Int(rand.Reader, numberSpace)
	if err != nil {
		return "", fmt.Errorf("generate wallet number: %w", err)
	}
	return fmt.Sprintf("%0*d", numberDigits, n), nil
}
