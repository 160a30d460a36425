package inventory

import (
	"context"
	"time"

	"github.com/warp/resale-ledger/ledger"
)

// Reader is the read side of the inventory store. Getters return
// ledger.ErrNotFoundOrUnauthorized for rows that are missing, soft-deleted,
// or owned by another user. List methods skip soft-deleted rows.
type Reader interface {
	GetBatch(ctx context.Context, userID ledger.UserID, id string) (Batch, error)
	ListBatches(ctx context.Context, userID ledger.UserID) ([]Batch, error)
	GetItem(ctx context.Context, userID ledger.UserID, id string) (Item, error)
	ListItems(ctx context.Context, userID ledger.UserID, f ItemFilter) ([]Item, error)
	GetCost(ctx context.Context, userID ledger.UserID, id string) (OperationalCost, error)
	ListCosts(ctx context.Context, userID ledger.UserID, f CostFilter) ([]OperationalCost, error)
}

// Tx is one unit of work spanning the ledger tables and the inventory
// tables. Everything written through it commits together.
type Tx interface {
	ledger.Tx
	Reader

	InsertBatch(ctx context.Context, b Batch) error
	UpdateBatch(ctx context.Context, b Batch) error
	InsertItem(ctx context.Context, it Item) error
	UpdateItem(ctx context.Context, it Item) error
	InsertCost(ctx context.Context, c OperationalCost) error
	UpdateCost(ctx context.Context, c OperationalCost) error

	SoftDeleteBatch(ctx context.Context, id string, at time.Time) error
	SoftDeleteItem(ctx context.Context, id string, at time.Time) error
	SoftDeleteCost(ctx context.Context, id string, at time.Time) error

	// Batched cascade updates; they return the number of rows marked.
	SoftDeleteItemsByBatch(ctx context.Context, batchID string, at time.Time) (int64, error)
	SoftDeleteCostsByBatch(ctx context.Context, batchID string, at time.Time) (int64, error)
}

// Store is the inventory persistence boundary.
type Store interface {
	Reader

	// WithInventoryTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithInventoryTx(ctx context.Context, fn func(Tx) error) error
}
