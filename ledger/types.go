/*
Package ledger provides the budget ledger engine.

PURPOSE:
  Every money-affecting event of a user (top-ups, batch purchases,
  operational costs, item sales and their reversals) is recorded here as an
  immutable signed transaction. A per-user Balance row caches the running
  total and is written in the same unit of work as the transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: a monetary value backed by decimal.Decimal
  - Transaction: an immutable ledger entry
  - TransactionKind: why the money moved
  - Balance: the cached per-user total

DESIGN PRINCIPLES:
  1. Immutability: amounts are never edited, only compensated
  2. Precision: decimal.Decimal, rounded to 2 places on input
  3. Type Safety: distinct ID types for users and transactions
  4. Auditability: every entry carries kind, description and reference

USAGE:
  res, err := engine.RecordTransaction(ctx, ledger.Entry{
      UserID: "user-1",
      Amount: ledger.NewAmount(-60000),
      Kind:   ledger.KindBatchPurchase,
  })

SEE ALSO:
  - engine.go: RecordTransaction and the composite entry points
  - store.go: persistence interfaces
  - errors.go: error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Signed monetary value
// =============================================================================

// Scale is the number of decimal places kept for stored amounts.
const Scale = 2

// Amount is a signed money value. Positive = inflow, negative = outflow.
type Amount struct {
	decimal.Decimal
}

func NewAmount(value int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(value)}
}

func AmountOf(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(Scale)}
}

// ParseAmount parses a decimal string such as "120000" or "15.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return AmountOf(d), nil
}

// MustParseAmount is ParseAmount for literals in tests and fixtures.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

var Zero = Amount{Decimal: decimal.Zero}

func (a Amount) Add(b Amount) Amount { return Amount{a.Decimal.Add(b.Decimal)} }
func (a Amount) Sub(b Amount) Amount { return Amount{a.Decimal.Sub(b.Decimal)} }
func (a Amount) Neg() Amount { return Amount{a.Decimal.Neg()} }
func (a Amount) Abs() Amount { return Amount{a.Decimal.Abs()} }
func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }
func (a Amount) GreaterThan(b Amount) bool { return a.Decimal.GreaterThan(b.Decimal) }
func (a Amount) LessThan(b Amount) bool { return a.Decimal.LessThan(b.Decimal) }
func (a Amount) String() string { return a.Decimal.StringFixed(Scale) }
func (a Amount) MulInt(n int64) Amount { return Amount{a.Decimal.Mul(decimal.NewFromInt(n))} }

// Sum adds up a list of amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// =============================================================================
// TRANSACTION - Immutable record of one balance change
// =============================================================================

type TransactionKind string

const (
	KindTopUp                 TransactionKind = "top_up"
	KindBatchPurchase         TransactionKind = "batch_purchase"
	KindOperationalCost       TransactionKind = "operational_cost"
	KindOperationalCostRefund TransactionKind = "operational_cost_refund"
	KindItemSale              TransactionKind = "item_sale"
	KindItemSaleReversal      TransactionKind = "item_sale_reversal"
	KindOther                 TransactionKind = "other"
)

// Kinds lists every transaction kind in display order.
var Kinds = []TransactionKind{
	KindTopUp,
	KindBatchPurchase,
	KindOperationalCost,
	KindOperationalCostRefund,
	KindItemSale,
	KindItemSaleReversal,
	KindOther,
}

func (k TransactionKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

type Transaction struct {
	ID          TransactionID
	UserID      UserID
	Amount      Amount
	Kind        TransactionKind
	Description string
	ReferenceID string // Batch, Item or OperationalCost id; lookup only
	CreatedAt   time.Time

	// Set only by VoidTransaction. Voided rows are excluded from the balance.
	DeletedAt *time.Time
}

func (t Transaction) Voided() bool { return t.DeletedAt != nil }

// =============================================================================
// BALANCE - Cached running total, one row per user
// =============================================================================

type Balance struct {
	UserID        UserID
	CurrentAmount Amount
	UpdatedAt     time.Time
}

// =============================================================================
// ENTRY / RESULT - RecordTransaction input and output
// =============================================================================

// Entry is a request to append one transaction.
type Entry struct {
	UserID      UserID
	Amount      Amount
	Kind        TransactionKind
	Description string
	ReferenceID string
}

// Result is what RecordTransaction returns on success.
type Result struct {
	Transaction     Transaction
	PreviousBalance Amount
	UpdatedBalance  Amount
}
