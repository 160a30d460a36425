package inventory

import (
	"context"
	"fmt"

	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// READS - No locking; each call sees committed state only
// =============================================================================

// GetBatch returns a live batch with its live items and costs.
func (c *Coordinator) GetBatch(ctx context.Context, batchID string, userID ledger.UserID) (Batch, error) {
	batch, err := c.store.GetBatch(ctx, userID, batchID)
	if err != nil {
		return Batch{}, err
	}
	if batch.Items, err = c.store.ListItems(ctx, userID, ItemFilter{BatchID: batchID}); err != nil {
		return Batch{}, fmt.Errorf("list items: %w", err)
	}
	if batch.Costs, err = c.store.ListCosts(ctx, userID, CostFilter{BatchID: batchID}); err != nil {
		return Batch{}, fmt.Errorf("list costs: %w", err)
	}
	return batch, nil
}

func (c *Coordinator) ListBatches(ctx context.Context, userID ledger.UserID) ([]Batch, error) {
	return c.store.ListBatches(ctx, userID)
}

func (c *Coordinator) GetItem(ctx context.Context, itemID string, userID ledger.UserID) (Item, error) {
	return c.store.GetItem(ctx, userID, itemID)
}

func (c *Coordinator) ListItems(ctx context.Context, userID ledger.UserID, f ItemFilter) ([]Item, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ledger.Invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	return c.store.ListItems(ctx, userID, f)
}

func (c *Coordinator) ListCosts(ctx context.Context, userID ledger.UserID, f CostFilter) ([]OperationalCost, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, ledger.Invalid("to", "must not be before from")
	}
	return c.store.ListCosts(ctx, userID, f)
}

// Stats aggregates the user's live batches and items.
func (c *Coordinator) Stats(ctx context.Context, userID ledger.UserID) (Stats, error) {
	batches, err := c.store.ListBatches(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("list batches: %w", err)
	}
	items, err := c.store.ListItems(ctx, userID, ItemFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list items: %w", err)
	}
	return Summarize(batches, items), nil
}

// Summarize computes Stats from already-loaded rows.
func Summarize(batches []Batch, items []Item) Stats {
	s := Stats{
		Batches:        len(batches),
		Items:          len(items),
		Invested:       ledger.Zero,
		Revenue:        ledger.Zero,
		GrossProfit:    ledger.Zero,
		InventoryValue: ledger.Zero,
	}
	for _, b := range batches {
		s.Invested = s.Invested.Add(b.TotalCost)
		s.Revenue = s.Revenue.Add(b.TotalRevenue)
	}
	for _, it := range items {
		if it.Sold() {
			s.Sold++
			s.GrossProfit = s.GrossProfit.Add(it.SellingPrice.Sub(it.TotalCost))
			continue
		}
		s.Unsold++
		s.InventoryValue = s.InventoryValue.Add(it.PurchasePrice)
	}
	return s
}
