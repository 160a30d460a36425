/*
store.go - Persistence interfaces for the transaction log and balances

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks SQL; it reads and writes through a Tx obtained from
  Store.WithTx, so the transaction append and the balance write commit
  together or not at all.

KEY INTERFACES:
  Reader:  read-only queries (balance, history, single transaction)
  Tx:      Reader + writes, valid only inside WithTx
  Store:   Reader + WithTx

APPEND-ONLY CONTRACT:
  - InsertTransaction is the only way to add money movement
  - There is no method that changes an amount
  - SetTransactionReference fills the back-reference after the referenced
    entity exists (batch purchase flow)
  - MarkTransactionDeleted exists for corrections only (VoidTransaction)

LOCKING:
  LockBalance must hold a write lock on the user's balance row until the
  unit of work ends (SELECT ... FOR UPDATE on postgres, BEGIN IMMEDIATE on
  sqlite, the store mutex in memory). Combined with the engine's per-user
  mutex this prevents two deductions from both passing the funds check.

IMPLEMENTATIONS:
  - store/sqlstore: sqlite3 / postgres via sqlx
  - ledger/store: in-memory, for tests
*/
package ledger

import (
	"context"
	"time"
)

// Filter narrows History queries. Zero value = all live transactions.
type Filter struct {
	Kind          TransactionKind
	From          *time.Time
	To            *time.Time
	Limit         int // 0 = no limit
	Offset        int
	IncludeVoided bool
}

// Reader is the read side of the ledger store.
type Reader interface {
	// GetBalance returns the stored balance; found is false if no row exists.
	GetBalance(ctx context.Context, userID UserID) (b Balance, found bool, err error)

	// ListTransactions returns transactions newest first.
	ListTransactions(ctx context.Context, userID UserID, f Filter) ([]Transaction, error)

	// GetTransaction returns ErrNotFoundOrUnauthorized if the id does not
	// belong to the user.
	GetTransaction(ctx context.Context, userID UserID, id TransactionID) (Transaction, error)
}

// Tx is a unit of work. All writes through a Tx commit together.
type Tx interface {
	Reader

	// LockBalance returns the balance, creating a zero row if missing, and
	// holds a write lock on it until the unit of work ends.
	LockBalance(ctx context.Context, userID UserID) (Balance, error)

	SetBalance(ctx context.Context, userID UserID, amount Amount, at time.Time) error

	InsertTransaction(ctx context.Context, tx Transaction) error

	SetTransactionReference(ctx context.Context, id TransactionID, referenceID string) error

	MarkTransactionDeleted(ctx context.Context, id TransactionID, at time.Time) error
}

// Store is the ledger's persistence boundary.
type Store interface {
	Reader

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Tx) error) error
}
