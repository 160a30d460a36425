package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

const (
	batchColumns = `id, user_id, name, description, purchase_date, total_items, total_cost,
		total_sold, total_revenue, created_at, updated_at, deleted_at`

	itemColumns = `id, batch_id, user_id, name, category, purchase_price, selling_price,
		margin_value, margin_percentage, sold_status, sold_at, total_cost, image_ref,
		created_at, updated_at, deleted_at`

	costColumns = `id, batch_id, user_id, name, amount, date, category, created_at, deleted_at`
)

// =============================================================================
// INVENTORY READS (inventory.Reader)
// =============================================================================

func (qs queries) GetBatch(ctx context.Context, userID ledger.UserID, id string) (inventory.Batch, error) {
	var row batchRow
	err := qs.get(ctx, &row,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, string(userID))
	if err != nil {
		return inventory.Batch{}, notFound(err, "batch", id)
	}
	return row.toBatch(), nil
}

func (qs queries) ListBatches(ctx context.Context, userID ledger.UserID) ([]inventory.Batch, error) {
	var rows []batchRow
	if err := qs.list(ctx, &rows,
		`SELECT `+batchColumns+` FROM batches WHERE user_id = ? AND deleted_at IS NULL
		 ORDER BY purchase_date DESC, created_at DESC`, string(userID)); err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}

	batches := make([]inventory.Batch, len(rows))
	for i, r := range rows {
		batches[i] = r.toBatch()
	}
	return batches, nil
}

func (qs queries) GetItem(ctx context.Context, userID ledger.UserID, id string) (inventory.Item, error) {
	var row itemRow
	err := qs.get(ctx, &row,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, string(userID))
	if err != nil {
		return inventory.Item{}, notFound(err, "item", id)
	}
	return row.toItem(), nil
}

func (qs queries) ListItems(ctx context.Context, userID ledger.UserID, f inventory.ItemFilter) ([]inventory.Item, error) {
	w := &where{}
	w.add("user_id = ?", string(userID))
	w.add("deleted_at IS NULL")
	if f.BatchID != "" {
		w.add("batch_id = ?", f.BatchID)
	}
	if f.Status != "" {
		w.add("sold_status = ?", string(f.Status))
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}

	var rows []itemRow
	if err := qs.list(ctx, &rows,
		`SELECT `+itemColumns+` FROM items`+w.String()+` ORDER BY created_at ASC, id ASC`,
		w.args...); err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}

	items := make([]inventory.Item, len(rows))
	for i, r := range rows {
		items[i] = r.toItem()
	}
	return items, nil
}

func (qs queries) GetCost(ctx context.Context, userID ledger.UserID, id string) (inventory.OperationalCost, error) {
	var row costRow
	err := qs.get(ctx, &row,
		`SELECT `+costColumns+` FROM operational_costs WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, string(userID))
	if err != nil {
		return inventory.OperationalCost{}, notFound(err, "operational cost", id)
	}
	return row.toCost(), nil
}

func (qs queries) ListCosts(ctx context.Context, userID ledger.UserID, f inventory.CostFilter) ([]inventory.OperationalCost, error) {
	w := &where{}
	w.add("user_id = ?", string(userID))
	w.add("deleted_at IS NULL")
	if f.BatchID != "" {
		w.add("batch_id = ?", f.BatchID)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.From != nil {
		w.add("date >= ?", f.From.UTC())
	}
	if f.To != nil {
		w.add("date <= ?", f.To.UTC())
	}

	var rows []costRow
	if err := qs.list(ctx, &rows,
		`SELECT `+costColumns+` FROM operational_costs`+w.String()+` ORDER BY date DESC, created_at DESC`,
		w.args...); err != nil {
		return nil, fmt.Errorf("failed to query operational costs: %w", err)
	}

	costs := make([]inventory.OperationalCost, len(rows))
	for i, r := range rows {
		costs[i] = r.toCost()
	}
	return costs, nil
}

// =============================================================================
// INVENTORY WRITES (inventory.Tx)
// =============================================================================

func (t *tx) InsertBatch(ctx context.Context, b inventory.Batch) error {
	return t.insert(ctx, "batch",
		`INSERT INTO batches (`+batchColumns+`)
		 VALUES (:id, :user_id, :name, :description, :purchase_date, :total_items, :total_cost,
		         :total_sold, :total_revenue, :created_at, :updated_at, :deleted_at)`,
		toBatchRow(b))
}

func (t *tx) UpdateBatch(ctx context.Context, b inventory.Batch) error {
	return t.namedUpdate(ctx, "batch", b.ID,
		`UPDATE batches SET name = :name, description = :description, purchase_date = :purchase_date,
		        total_items = :total_items, total_cost = :total_cost, total_sold = :total_sold,
		        total_revenue = :total_revenue, updated_at = :updated_at
		 WHERE id = :id AND deleted_at IS NULL`,
		toBatchRow(b))
}

func (t *tx) InsertItem(ctx context.Context, it inventory.Item) error {
	return t.insert(ctx, "item",
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (:id, :batch_id, :user_id, :name, :category, :purchase_price, :selling_price,
		         :margin_value, :margin_percentage, :sold_status, :sold_at, :total_cost, :image_ref,
		         :created_at, :updated_at, :deleted_at)`,
		toItemRow(it))
}

func (t *tx) UpdateItem(ctx context.Context, it inventory.Item) error {
	return t.namedUpdate(ctx, "item", it.ID,
		`UPDATE items SET name = :name, category = :category, purchase_price = :purchase_price,
		        selling_price = :selling_price, margin_value = :margin_value,
		        margin_percentage = :margin_percentage, sold_status = :sold_status, sold_at = :sold_at,
		        total_cost = :total_cost, image_ref = :image_ref, updated_at = :updated_at
		 WHERE id = :id AND deleted_at IS NULL`,
		toItemRow(it))
}

func (t *tx) InsertCost(ctx context.Context, c inventory.OperationalCost) error {
	return t.insert(ctx, "operational cost",
		`INSERT INTO operational_costs (`+costColumns+`)
		 VALUES (:id, :batch_id, :user_id, :name, :amount, :date, :category, :created_at, :deleted_at)`,
		toCostRow(c))
}

func (t *tx) UpdateCost(ctx context.Context, c inventory.OperationalCost) error {
	return t.namedUpdate(ctx, "operational cost", c.ID,
		`UPDATE operational_costs SET name = :name, amount = :amount, date = :date, category = :category
		 WHERE id = :id AND deleted_at IS NULL`,
		toCostRow(c))
}

// =============================================================================
// SOFT DELETES
// =============================================================================

func (t *tx) SoftDeleteBatch(ctx context.Context, id string, at time.Time) error {
	return t.softDelete(ctx, "batch", id, `UPDATE batches SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), at.UTC(), id)
}

func (t *tx) SoftDeleteItem(ctx context.Context, id string, at time.Time) error {
	return t.softDelete(ctx, "item", id, `UPDATE items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), at.UTC(), id)
}

func (t *tx) SoftDeleteCost(ctx context.Context, id string, at time.Time) error {
	return t.softDelete(ctx, "operational cost", id, `UPDATE operational_costs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), id)
}

func (t *tx) SoftDeleteItemsByBatch(ctx context.Context, batchID string, at time.Time) (int64, error) {
	n, err := t.exec(ctx,
		`UPDATE items SET deleted_at = ?, updated_at = ? WHERE batch_id = ? AND deleted_at IS NULL`,
		at.UTC(), at.UTC(), batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items of batch %s: %w", batchID, err)
	}
	return n, nil
}

func (t *tx) SoftDeleteCostsByBatch(ctx context.Context, batchID string, at time.Time) (int64, error) {
	n, err := t.exec(ctx,
		`UPDATE operational_costs SET deleted_at = ? WHERE batch_id = ? AND deleted_at IS NULL`,
		at.UTC(), batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete costs of batch %s: %w", batchID, err)
	}
	return n, nil
}

func (t *tx) softDelete(ctx context.Context, entity, id, query string, args ...any) error {
	n, err := t.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrNotFoundOrUnauthorized)
	}
	return nil
}

func (t *tx) insert(ctx context.Context, entity, query string, arg any) error {
	if _, err := t.namedExec(ctx, query, arg); err != nil {
		return fmt.Errorf("failed to insert %s: %w", entity, err)
	}
	return nil
}

func (t *tx) namedUpdate(ctx context.Context, entity, id, query string, arg any) error {
	res, err := t.namedExec(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	if res == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrNotFoundOrUnauthorized)
	}
	return nil
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrNotFoundOrUnauthorized)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}
