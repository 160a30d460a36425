/*
summary.go - Derived reads over the transaction log

PURPOSE:
  Answers "how much do I have and where did it go?". Everything here is a
  pure read except Reconcile with repair=true, which rewrites a drifted
  balance row to the computed sum.

STATISTICS:
  Grouped by TransactionKind over non-voided transactions:
    top_up                   +Σ, n
    batch_purchase           -Σ, n
    ...
  TotalInflow  = Σ positive amounts
  TotalOutflow = Σ |negative amounts|
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// KindStats aggregates one transaction kind.
type KindStats struct {
	Kind  TransactionKind
	Sum   Amount
	Count int
}

// Summary is the budget overview for one user.
type Summary struct {
	UserID           UserID
	CurrentBalance   Amount
	Statistics       map[TransactionKind]KindStats
	TotalInflow      Amount
	TotalOutflow     Amount
	TransactionCount int
	UpdatedAt        time.Time
}

// Summary returns the current balance and per-kind statistics.
// Reads run under the user's lock so the balance and the statistics
// describe the same set of transactions.
func (e *Engine) Summary(ctx context.Context, userID UserID) (Summary, error) {
	if userID == "" {
		return Summary{}, Invalid("user_id", "is required")
	}

	var s Summary
	err := e.Serialize(ctx, userID, func() error {
		balance, _, err := e.store.GetBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		txs, err := e.store.ListTransactions(ctx, userID, Filter{})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		s = Summarize(userID, txs)
		s.CurrentBalance = balance.CurrentAmount
		s.UpdatedAt = balance.UpdatedAt
		return nil
	})
	return s, err
}

// Summarize aggregates transactions by kind. Voided transactions are skipped.
// CurrentBalance is set to the computed sum.
func Summarize(userID UserID, txs []Transaction) Summary {
	s := Summary{
		UserID:       userID,
		Statistics:   make(map[TransactionKind]KindStats, len(Kinds)),
		TotalInflow:  Zero,
		TotalOutflow: Zero,
	}
	for _, k := range Kinds {
		s.Statistics[k] = KindStats{Kind: k, Sum: Zero}
	}

	computed := Zero
	for _, t := range txs {
		if t.Voided() {
			continue
		}
		st := s.Statistics[t.Kind]
		st.Kind = t.Kind
		st.Sum = st.Sum.Add(t.Amount)
		st.Count++
		s.Statistics[t.Kind] = st

		if t.Amount.IsPositive() {
			s.TotalInflow = s.TotalInflow.Add(t.Amount)
		} else {
			s.TotalOutflow = s.TotalOutflow.Add(t.Amount.Abs())
		}
		computed = computed.Add(t.Amount)
		s.TransactionCount++
	}
	s.CurrentBalance = computed
	return s
}

// History lists transactions newest first.
func (e *Engine) History(ctx context.Context, userID UserID, f Filter) ([]Transaction, error) {
	if userID == "" {
		return nil, Invalid("user_id", "is required")
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, Invalid("kind", fmt.Sprintf("unknown transaction kind %q", f.Kind))
	}
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return e.store.ListTransactions(ctx, userID, f)
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconciliation compares the cached balance with the transaction sum.
type Reconciliation struct {
	UserID   UserID
	Stored   Amount
	Computed Amount
	Drift    Amount // Stored - Computed
	Repaired bool
}

func (r Reconciliation) Consistent() bool { return r.Drift.IsZero() }

// Reconcile recomputes the balance from the log. With repair, a drifted
// balance row is overwritten with the computed sum.
func (e *Engine) Reconcile(ctx context.Context, userID UserID, repair bool) (Reconciliation, error) {
	if userID == "" {
		return Reconciliation{}, Invalid("user_id", "is required")
	}

	var rec Reconciliation
	err := e.Atomic(ctx, userID, func(tx Tx) error {
		balance, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		txs, err := tx.ListTransactions(ctx, userID, Filter{})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}

		computed := Summarize(userID, txs).CurrentBalance
		rec = Reconciliation{
			UserID:   userID,
			Stored:   balance.CurrentAmount,
			Computed: computed,
			Drift:    balance.CurrentAmount.Sub(computed),
		}
		if repair && !rec.Consistent() {
			if err := tx.SetBalance(ctx, userID, computed, e.now()); err != nil {
				return fmt.Errorf("set balance: %w", err)
			}
			rec.Repaired = true
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}

	if !rec.Consistent() {
		e.log.WithFields(logrus.Fields{
			"user_id":  userID,
			"stored":   rec.Stored.String(),
			"computed": rec.Computed.String(),
			"repaired": rec.Repaired,
		}).Warn("balance drift detected")
	}
	return rec, nil
}
