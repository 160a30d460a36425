package inventory

import (
	"errors"

	"github.com/warp/resale-ledger/ledger"
)

var (
	// ErrAlreadySold is returned when registering a sale for a sold item.
	ErrAlreadySold = errors.New("item already sold")

	// ErrAlreadyUnsold is returned when reversing a sale for an unsold item.
	ErrAlreadyUnsold = errors.New("item already unsold")
)

func init() {
	ledger.RegisterStateError(ErrAlreadySold)
	ledger.RegisterStateError(ErrAlreadyUnsold)
}
