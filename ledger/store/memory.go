// Package store provides an in-memory ledger.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions []ledger.Transaction
	byID         map[ledger.TransactionID]int
	balances     map[ledger.UserID]ledger.Balance

	// FailInsert, when set, is returned by InsertTransaction. Tests use it to
	// exercise rollback.
	FailInsert error
}

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[ledger.TransactionID]int),
		balances: make(map[ledger.UserID]ledger.Balance),
	}
}

var _ ledger.Store = (*Memory)(nil)

func (m *Memory) GetBalance(_ context.Context, userID ledger.UserID) (ledger.Balance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(userID)
}

func (m *Memory) getBalanceLocked(userID ledger.UserID) (ledger.Balance, bool, error) {
	b, ok := m.balances[userID]
	if !ok {
		return ledger.Balance{UserID: userID, CurrentAmount: ledger.Zero}, false, nil
	}
	return b, true, nil
}

func (m *Memory) ListTransactions(_ context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(userID, f), nil
}

func (m *Memory) listLocked(userID ledger.UserID, f ledger.Filter) []ledger.Transaction {
	var result []ledger.Transaction
	for _, t := range m.transactions {
		if t.UserID != userID {
			continue
		}
		if t.Voided() && !f.IncludeVoided {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && t.CreatedAt.After(*f.To) {
			continue
		}
		result = append(result, t)
	}

	// Newest first; insertion order breaks ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result
}

func (m *Memory) GetTransaction(_ context.Context, userID ledger.UserID, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(userID, id)
}

func (m *Memory) getTransactionLocked(userID ledger.UserID, id ledger.TransactionID) (ledger.Transaction, error) {
	i, ok := m.byID[id]
	if !ok || m.transactions[i].UserID != userID {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFoundOrUnauthorized)
	}
	return m.transactions[i], nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store mutex is held for the whole unit, which also serves as the
// balance row lock.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	transactions []ledger.Transaction
	byID         map[ledger.TransactionID]int
	balances     map[ledger.UserID]ledger.Balance
}

func (m *Memory) snapshot() memorySnapshot {
	byID := make(map[ledger.TransactionID]int, len(m.byID))
	for k, v := range m.byID {
		byID[k] = v
	}
	balances := make(map[ledger.UserID]ledger.Balance, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	return memorySnapshot{
		transactions: append([]ledger.Transaction(nil), m.transactions...),
		byID:         byID,
		balances:     balances,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.transactions = s.transactions
	m.byID = s.byID
	m.balances = s.balances
}

type txView struct {
	parent *Memory
}

func (tv *txView) GetBalance(_ context.Context, userID ledger.UserID) (ledger.Balance, bool, error) {
	return tv.parent.getBalanceLocked(userID)
}

func (tv *txView) ListTransactions(_ context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Transaction, error) {
	return tv.parent.listLocked(userID, f), nil
}

func (tv *txView) GetTransaction(_ context.Context, userID ledger.UserID, id ledger.TransactionID) (ledger.Transaction, error) {
	return tv.parent.getTransactionLocked(userID, id)
}

func (tv *txView) LockBalance(_ context.Context, userID ledger.UserID) (ledger.Balance, error) {
	b, found, _ := tv.parent.getBalanceLocked(userID)
	if !found {
		b.UpdatedAt = time.Now().UTC()
		tv.parent.balances[userID] = b
	}
	return b, nil
}

func (tv *txView) SetBalance(_ context.Context, userID ledger.UserID, amount ledger.Amount, at time.Time) error {
	tv.parent.balances[userID] = ledger.Balance{UserID: userID, CurrentAmount: amount, UpdatedAt: at}
	return nil
}

func (tv *txView) InsertTransaction(_ context.Context, t ledger.Transaction) error {
	if tv.parent.FailInsert != nil {
		return tv.parent.FailInsert
	}
	if _, exists := tv.parent.byID[t.ID]; exists {
		return fmt.Errorf("duplicate transaction id %s", t.ID)
	}
	tv.parent.byID[t.ID] = len(tv.parent.transactions)
	tv.parent.transactions = append(tv.parent.transactions, t)
	return nil
}

func (tv *txView) SetTransactionReference(_ context.Context, id ledger.TransactionID, referenceID string) error {
	i, ok := tv.parent.byID[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFoundOrUnauthorized)
	}
	tv.parent.transactions[i].ReferenceID = referenceID
	return nil
}

func (tv *txView) MarkTransactionDeleted(_ context.Context, id ledger.TransactionID, at time.Time) error {
	i, ok := tv.parent.byID[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFoundOrUnauthorized)
	}
	deletedAt := at
	tv.parent.transactions[i].DeletedAt = &deletedAt
	return nil
}

// SetBalanceUnsafe overwrites a balance outside any transaction log entry.
// Tests use it to simulate drift or pre-existing manual corrections.
func (m *Memory) SetBalanceUnsafe(userID ledger.UserID, amount ledger.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = ledger.Balance{UserID: userID, CurrentAmount: amount, UpdatedAt: time.Now().UTC()}
}
