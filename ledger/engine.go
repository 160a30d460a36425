/*
engine.go - The budget ledger engine

PURPOSE:
  Records every money movement as an immutable transaction and keeps the
  per-user Balance row equal to the sum of live transactions. This is the
  only place that decides whether a deduction is allowed.

CRITICAL INVARIANTS:
  1. SUM: Balance.CurrentAmount == Σ amount of non-voided transactions
  2. NO-NEGATIVE: a deduction that would take the balance below zero is
     rejected with InsufficientFundsError and writes nothing
  3. APPEND-ONLY: amounts are never edited; corrections are new entries
     (or, for manual corrections only, VoidTransaction)
  4. SERIALIZED: read-check-write on a user's balance happens under the
     user's lock and inside one store transaction

COMPOSITE OPERATIONS:
  The inventory coordinator needs ledger writes and inventory writes to
  commit together. It calls Serialize to hold the user lock, opens its own
  unit of work, and calls Record with that unit's Tx. After commit it
  reports the results through Committed.

  err := engine.Serialize(ctx, userID, func() error {
      return store.WithInventoryTx(ctx, func(tx inventory.Tx) error {
          res, err := engine.Record(ctx, tx, entry)
          ...
      })
  })

SEE ALSO:
  - store.go: Tx / Store interfaces
  - summary.go: Summary, History, Reconcile
  - inventory/coordinator.go: composite operations
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/metrics"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store Store
	locks *userLocks
	log   logrus.FieldLogger
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		locks: newUserLocks(),
		log:   logrus.StandardLogger(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine clock, so composite operations stamp rows with the
// same time source as their ledger entries.
func (e *Engine) Now() time.Time { return e.now() }

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize runs fn while holding the user's lock. Calls for different
// users run in parallel.
func (e *Engine) Serialize(ctx context.Context, userID UserID, fn func() error) error {
	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Atomic runs fn under the user's lock inside one ledger unit of work.
func (e *Engine) Atomic(ctx context.Context, userID UserID, fn func(Tx) error) error {
	return e.Serialize(ctx, userID, func() error {
		return e.store.WithTx(ctx, fn)
	})
}

// =============================================================================
// RECORD - The single guarded write path
// =============================================================================

// RecordTransaction appends one transaction and updates the balance as a
// single unit. Deductions that would make the balance negative fail with
// *InsufficientFundsError and write nothing.
func (e *Engine) RecordTransaction(ctx context.Context, entry Entry) (Result, error) {
	start := time.Now()

	var res Result
	err := e.Atomic(ctx, entry.UserID, func(tx Tx) error {
		var err error
		res, err = e.Record(ctx, tx, entry)
		return err
	})
	metrics.ObserveOperation("record_transaction", Outcome(err), time.Since(start))
	if err != nil {
		return Result{}, err
	}

	e.Committed(res)
	return res, nil
}

// Record is RecordTransaction inside a caller-owned unit of work.
// The caller must hold the user's lock (see Serialize).
func (e *Engine) Record(ctx context.Context, tx Tx, entry Entry) (Result, error) {
	if err := validateEntry(entry); err != nil {
		return Result{}, err
	}

	balance, err := tx.LockBalance(ctx, entry.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("lock balance: %w", err)
	}

	updated := balance.CurrentAmount.Add(entry.Amount)
	if entry.Amount.IsNegative() && updated.IsNegative() {
		metrics.RecordRejection("insufficient_funds")
		e.log.WithFields(logrus.Fields{
			"user_id":  entry.UserID,
			"kind":     entry.Kind,
			"current":  balance.CurrentAmount.String(),
			"required": entry.Amount.Abs().String(),
		}).Warn("deduction rejected: insufficient funds")
		return Result{}, &InsufficientFundsError{
			UserID:   entry.UserID,
			Current:  balance.CurrentAmount,
			Required: entry.Amount.Abs(),
		}
	}

	now := e.now()
	t := Transaction{
		ID:          TransactionID(e.newID()),
		UserID:      entry.UserID,
		Amount:      entry.Amount,
		Kind:        entry.Kind,
		Description: entry.Description,
		ReferenceID: entry.ReferenceID,
		CreatedAt:   now,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return Result{}, fmt.Errorf("insert transaction: %w", err)
	}
	if err := tx.SetBalance(ctx, entry.UserID, updated, now); err != nil {
		return Result{}, fmt.Errorf("set balance: %w", err)
	}

	return Result{
		Transaction:     t,
		PreviousBalance: balance.CurrentAmount,
		UpdatedBalance:  updated,
	}, nil
}

// Committed reports transactions whose unit of work has committed.
func (e *Engine) Committed(results ...Result) {
	for _, r := range results {
		metrics.RecordTransaction(string(r.Transaction.Kind))
		e.log.WithFields(logrus.Fields{
			"user_id":        r.Transaction.UserID,
			"transaction_id": r.Transaction.ID,
			"kind":           r.Transaction.Kind,
			"amount":         r.Transaction.Amount.String(),
			"balance":        r.UpdatedBalance.String(),
		}).Info("ledger transaction recorded")
	}
}

func validateEntry(entry Entry) error {
	if entry.UserID == "" {
		return Invalid("user_id", "is required")
	}
	if !entry.Kind.Valid() {
		return Invalid("kind", fmt.Sprintf("unknown transaction kind %q", entry.Kind))
	}
	if entry.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidAmount)
	}
	return nil
}

// =============================================================================
// TOP-UP
// =============================================================================

// TopUp adds money to the budget. Non-positive amounts fail with ErrInvalidAmount.
func (e *Engine) TopUp(ctx context.Context, userID UserID, amount Amount, description string) (Result, error) {
	if !amount.IsPositive() {
		metrics.RecordRejection("invalid_amount")
		return Result{}, fmt.Errorf("%w: top-up amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	if description == "" {
		description = "Budget top-up"
	}
	return e.RecordTransaction(ctx, Entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        KindTopUp,
		Description: description,
	})
}

// =============================================================================
// CORRECTIONS
// =============================================================================

// VoidTransaction soft-deletes a transaction as a manual correction and
// moves the balance by the opposite of its amount, keeping the SUM
// invariant. It is not part of any normal business flow.
func (e *Engine) VoidTransaction(ctx context.Context, userID UserID, id TransactionID, reason string) (Result, error) {
	start := time.Now()

	var res Result
	err := e.Atomic(ctx, userID, func(tx Tx) error {
		t, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if t.Voided() {
			return fmt.Errorf("transaction %s already voided: %w", id, ErrNotFoundOrUnauthorized)
		}

		balance, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		updated := balance.CurrentAmount.Sub(t.Amount)
		if t.Amount.IsPositive() && updated.IsNegative() {
			metrics.RecordRejection("insufficient_funds")
			return &InsufficientFundsError{
				UserID:   userID,
				Current:  balance.CurrentAmount,
				Required: t.Amount,
			}
		}

		now := e.now()
		if err := tx.MarkTransactionDeleted(ctx, id, now); err != nil {
			return fmt.Errorf("void transaction: %w", err)
		}
		if err := tx.SetBalance(ctx, userID, updated, now); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		t.DeletedAt = &now
		res = Result{Transaction: t, PreviousBalance: balance.CurrentAmount, UpdatedBalance: updated}
		return nil
	})
	metrics.ObserveOperation("void_transaction", Outcome(err), time.Since(start))
	if err != nil {
		return Result{}, err
	}

	e.log.WithFields(logrus.Fields{
		"user_id":        userID,
		"transaction_id": id,
		"amount":         res.Transaction.Amount.String(),
		"balance":        res.UpdatedBalance.String(),
		"reason":         reason,
	}).Warn("ledger transaction voided")
	return res, nil
}

// Outcome classifies an operation result for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsClientError(err), IsNotFound(err):
		return "rejected"
	case IsRetryable(err):
		return "timeout"
	default:
		return "error"
	}
}
