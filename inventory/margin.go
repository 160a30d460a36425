package inventory

import (
	"github.com/shopspring/decimal"
	"github.com/warp/resale-ledger/ledger"
)

var hundred = decimal.NewFromInt(100)

// Margin returns selling - purchase and that difference as a percentage of
// the purchase price, rounded to 2 places. A zero purchase price yields 0%.
func Margin(purchase, selling ledger.Amount) (ledger.Amount, decimal.Decimal) {
	value := selling.Sub(purchase)
	if !purchase.IsPositive() {
		return value, decimal.Zero
	}
	pct := value.Decimal.Div(purchase.Decimal).Mul(hundred).Round(2)
	return value, pct
}

// applyMargin recomputes the derived margin fields after a price change.
func applyMargin(it *Item) {
	it.MarginValue, it.MarginPercentage = Margin(it.PurchasePrice, it.SellingPrice)
}

// allocate splits total into n shares truncated to ledger.Scale places.
// The last share absorbs the remainder so the shares sum to total exactly.
func allocate(total ledger.Amount, n int) []ledger.Amount {
	if n <= 0 {
		return nil
	}
	shares := make([]ledger.Amount, n)
	share := ledger.AmountOf(total.Decimal.Div(decimal.NewFromInt(int64(n))).Truncate(ledger.Scale))
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = total.Sub(share.MulInt(int64(n - 1)))
	return shares
}
