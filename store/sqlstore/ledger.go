package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/resale-ledger/ledger"
)

const transactionColumns = `id, user_id, amount, kind, description, reference_id, created_at, deleted_at`

// =============================================================================
// LEDGER READS (ledger.Reader)
// =============================================================================

// GetBalance returns the stored balance, or a zero balance and false.
func (qs queries) GetBalance(ctx context.Context, userID ledger.UserID) (ledger.Balance, bool, error) {
	var row balanceRow
	err := qs.get(ctx, &row,
		`SELECT user_id, current_amount, updated_at FROM balances WHERE user_id = ?`, string(userID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{UserID: userID, CurrentAmount: ledger.Zero}, false, nil
	}
	if err != nil {
		return ledger.Balance{}, false, fmt.Errorf("failed to load balance: %w", err)
	}
	return row.toBalance(), true, nil
}

// ListTransactions returns the user's transactions, newest first.
func (qs queries) ListTransactions(ctx context.Context, userID ledger.UserID, f ledger.Filter) ([]ledger.Transaction, error) {
	w := &where{}
	w.add("user_id = ?", string(userID))
	if !f.IncludeVoided {
		w.add("deleted_at IS NULL")
	}
	if f.Kind != "" {
		w.add("kind = ?", string(f.Kind))
	}
	if f.From != nil {
		w.add("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		w.add("created_at <= ?", f.To.UTC())
	}

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions` + w.String() +
		` ORDER BY created_at DESC, seq DESC`
	page, pageArgs := qs.dialect.pagination(f.Limit, f.Offset)
	args := append(w.args, pageArgs...)

	var rows []transactionRow
	if err := qs.list(ctx, &rows, query+page, args...); err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	txs := make([]ledger.Transaction, len(rows))
	for i, r := range rows {
		txs[i] = r.toTransaction()
	}
	return txs, nil
}

// GetTransaction returns one transaction, voided or not.
func (qs queries) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (ledger.Transaction, error) {
	var row transactionRow
	err := qs.get(ctx, &row,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = ? AND user_id = ?`,
		string(id), string(userID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFoundOrUnauthorized)
	}
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("failed to load transaction: %w", err)
	}
	return row.toTransaction(), nil
}

// =============================================================================
// LEDGER WRITES (ledger.Tx)
// =============================================================================

// LockBalance creates the user's balance row if needed and locks it until
// the unit of work ends.
func (t *tx) LockBalance(ctx context.Context, userID ledger.UserID) (ledger.Balance, error) {
	if _, err := t.exec(ctx,
		`INSERT INTO balances (user_id, current_amount, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		string(userID), ledger.Zero, time.Now().UTC()); err != nil {
		return ledger.Balance{}, fmt.Errorf("failed to create balance: %w", err)
	}

	var row balanceRow
	if err := t.get(ctx, &row,
		`SELECT user_id, current_amount, updated_at FROM balances WHERE user_id = ?`+t.dialect.forUpdate(),
		string(userID)); err != nil {
		return ledger.Balance{}, fmt.Errorf("failed to lock balance: %w", err)
	}
	return row.toBalance(), nil
}

func (t *tx) SetBalance(ctx context.Context, userID ledger.UserID, amount ledger.Amount, at time.Time) error {
	n, err := t.exec(ctx,
		`UPDATE balances SET current_amount = ?, updated_at = ? WHERE user_id = ?`,
		amount, at.UTC(), string(userID))
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("balance for %s not locked", userID)
	}
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, lt ledger.Transaction) error {
	lt.CreatedAt = lt.CreatedAt.UTC()
	_, err := t.namedExec(ctx,
		`INSERT INTO ledger_transactions (`+transactionColumns+`)
		 VALUES (:id, :user_id, :amount, :kind, :description, :reference_id, :created_at, :deleted_at)`,
		toTransactionRow(lt))
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// SetTransactionReference attaches a back-reference. The amount is untouched.
func (t *tx) SetTransactionReference(ctx context.Context, id ledger.TransactionID, referenceID string) error {
	return t.updateTransaction(ctx, id,
		`UPDATE ledger_transactions SET reference_id = ? WHERE id = ?`, nullString(referenceID), string(id))
}

func (t *tx) MarkTransactionDeleted(ctx context.Context, id ledger.TransactionID, at time.Time) error {
	return t.updateTransaction(ctx, id,
		`UPDATE ledger_transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), string(id))
}

func (t *tx) updateTransaction(ctx context.Context, id ledger.TransactionID, query string, args ...any) error {
	n, err := t.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFoundOrUnauthorized)
	}
	return nil
}
