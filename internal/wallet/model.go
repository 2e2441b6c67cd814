package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet binds a ledger account to its owning user. The wallet number is the
// short public identifier used for transfers; internal ids never leave the
// service.
type Wallet struct {
	ID           string
	OwnerID      string
	WalletNumber string
	CreatedAt    time.Time
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletNumber string
	Amount       decimal.Decimal
	AsOf         time.Time
}
