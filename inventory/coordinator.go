/*
coordinator.go - Composite inventory + ledger operations

PURPOSE:
  Every operation here holds the user's ledger lock and runs one unit of
  work over both the ledger tables and the inventory tables. Either the
  whole operation commits or nothing does.

FLOW:
  run(op) → engine.Serialize(user)
          → store.WithInventoryTx
          → fn(unit): engine.Record(...) + inventory writes
          → commit → engine.Committed(results)

  Business rejections (InsufficientFunds, AlreadySold, NotFound, validation)
  are returned unchanged. Anything else aborts the unit and is wrapped as a
  *ledger.ConsistencyError.

PRICE EDITS:
  Both UpdateItem and UpdateBatch follow the same rule:
  - selling price change on a sold item → item_sale entry for (new - old),
    batch total_revenue moves by the same delta
  - purchase price change → batch_purchase entry for -(new - old), guarded
    like the original purchase, batch total_cost moves by the delta
  UpdateBatch books all purchase-side changes as a single delta entry.
*/
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/ledger"
	"github.com/warp/resale-ledger/metrics"
)

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	engine *ledger.Engine
	store  Store
	log    logrus.FieldLogger
	newID  func() string
}

type Option func(*Coordinator)

// WithLogger sets the coordinator logger. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = l }
}

func NewCoordinator(engine *ledger.Engine, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		store:  store,
		log:    logrus.StandardLogger(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// unit is one coordinator unit of work. Ledger results are collected and
// reported only after the unit commits.
type unit struct {
	Tx
	engine  *ledger.Engine
	userID  ledger.UserID
	now     time.Time
	results []ledger.Result
}

// record writes a ledger entry for the unit's user. A zero amount moves no
// money and writes nothing.
func (u *unit) record(ctx context.Context, amount ledger.Amount, kind ledger.TransactionKind, description, referenceID string) (ledger.Result, error) {
	if amount.IsZero() {
		return ledger.Result{}, nil
	}
	res, err := u.engine.Record(ctx, u.Tx, ledger.Entry{
		UserID:      u.userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		ReferenceID: referenceID,
	})
	if err != nil {
		return ledger.Result{}, err
	}
	u.results = append(u.results, res)
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, op string, userID ledger.UserID, fields logrus.Fields, fn func(u *unit) error) error {
	if userID == "" {
		return ledger.Invalid("user_id", "is required")
	}

	start := time.Now()
	var committed []ledger.Result
	err := c.engine.Serialize(ctx, userID, func() error {
		return c.store.WithInventoryTx(ctx, func(tx Tx) error {
			u := &unit{Tx: tx, engine: c.engine, userID: userID, now: c.engine.Now()}
			if err := fn(u); err != nil {
				return err
			}
			committed = u.results
			return nil
		})
	})
	err = ledger.Consistency(op, err)
	metrics.ObserveOperation(op, ledger.Outcome(err), time.Since(start))

	log := c.log.WithFields(fields).WithFields(logrus.Fields{"op": op, "user_id": userID})
	switch {
	case err == nil:
		c.engine.Committed(committed...)
		log.Debug("inventory operation committed")
	case ledger.IsClientError(err), ledger.IsNotFound(err):
		log.WithError(err).Warn("inventory operation rejected")
	default:
		log.WithError(err).Error("inventory operation rolled back")
	}
	return err
}

// =============================================================================
// BATCHES
// =============================================================================

// CreateBatch charges Σ purchase prices + Σ costs as one batch_purchase
// entry and creates the batch with its items and costs. On InsufficientFunds
// nothing is written.
func (c *Coordinator) CreateBatch(ctx context.Context, userID ledger.UserID, in BatchInput) (Batch, error) {
	if err := validateBatch(in.Name, in.Items, in.Costs); err != nil {
		return Batch{}, err
	}
	itemsTotal, costsTotal := sumItems(in.Items), sumCosts(in.Costs)
	total := itemsTotal.Add(costsTotal)

	var batch Batch
	err := c.run(ctx, "create_batch", userID, logrus.Fields{"batch_name": in.Name}, func(u *unit) error {
		purchase, err := u.record(ctx, total.Neg(), ledger.KindBatchPurchase,
			fmt.Sprintf("Purchase of batch %q", in.Name), "")
		if err != nil {
			return err
		}

		batch = Batch{
			ID:           c.newID(),
			UserID:       userID,
			Name:         strings.TrimSpace(in.Name),
			Description:  in.Description,
			PurchaseDate: orNow(in.PurchaseDate, u.now),
			TotalItems:   len(in.Items),
			TotalCost:    total,
			TotalRevenue: ledger.Zero,
			CreatedAt:    u.now,
			UpdatedAt:    u.now,
		}
		if err := u.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		shares := allocate(costsTotal, len(in.Items))
		for i, ii := range in.Items {
			item := c.newItem(batch, ii, u.now)
			item.TotalCost = item.PurchasePrice.Add(shares[i])
			if err := u.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			batch.Items = append(batch.Items, item)
		}
		for _, ci := range in.Costs {
			cost := c.newCost(userID, batch.ID, ci, batch.PurchaseDate, u.now)
			if err := u.InsertCost(ctx, cost); err != nil {
				return fmt.Errorf("insert cost: %w", err)
			}
			batch.Costs = append(batch.Costs, cost)
		}

		if purchase.Transaction.ID != "" {
			if err := u.SetTransactionReference(ctx, purchase.Transaction.ID, batch.ID); err != nil {
				return fmt.Errorf("attach batch reference: %w", err)
			}
			u.results[len(u.results)-1].Transaction.ReferenceID = batch.ID
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// UpdateBatch replaces the batch header and its item and cost sets. Only the
// difference between the new total and the stored total_cost is booked.
func (c *Coordinator) UpdateBatch(ctx context.Context, batchID string, userID ledger.UserID, upd BatchUpdate) (Batch, error) {
	if err := validateBatch(upd.Name, upd.Items, upd.Costs); err != nil {
		return Batch{}, err
	}

	var batch Batch
	err := c.run(ctx, "update_batch", userID, logrus.Fields{"batch_id": batchID}, func(u *unit) error {
		var err error
		batch, err = u.GetBatch(ctx, userID, batchID)
		if err != nil {
			return err
		}
		oldItems, err := u.ListItems(ctx, userID, ItemFilter{BatchID: batchID})
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}
		oldCosts, err := u.ListCosts(ctx, userID, CostFilter{BatchID: batchID})
		if err != nil {
			return fmt.Errorf("list costs: %w", err)
		}

		newTotal := sumItems(upd.Items).Add(sumCosts(upd.Costs))
		delta := newTotal.Sub(batch.TotalCost)
		if _, err := u.record(ctx, delta.Neg(), ledger.KindBatchPurchase,
			fmt.Sprintf("Adjustment of batch %q", upd.Name), batch.ID); err != nil {
			return err
		}

		items, err := c.replaceItems(ctx, u, batch, oldItems, upd.Items)
		if err != nil {
			return err
		}
		costs, err := c.replaceCosts(ctx, u, batch, oldCosts, upd.Costs)
		if err != nil {
			return err
		}

		batch.Name = strings.TrimSpace(upd.Name)
		batch.Description = upd.Description
		batch.PurchaseDate = orNow(upd.PurchaseDate, batch.PurchaseDate)
		batch.TotalCost = newTotal
		batch.TotalItems = len(items)
		batch.TotalSold = 0
		batch.TotalRevenue = ledger.Zero
		for _, it := range items {
			if it.Sold() {
				batch.TotalSold++
				batch.TotalRevenue = batch.TotalRevenue.Add(it.SellingPrice)
			}
		}
		batch.UpdatedAt = u.now
		if err := u.UpdateBatch(ctx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		batch.Items, batch.Costs = items, costs
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func (c *Coordinator) replaceItems(ctx context.Context, u *unit, batch Batch, old []Item, inputs []ItemInput) ([]Item, error) {
	existing := make(map[string]Item, len(old))
	for _, it := range old {
		existing[it.ID] = it
	}

	kept := make(map[string]bool, len(inputs))
	result := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			item := c.newItem(batch, in, u.now)
			if err := u.InsertItem(ctx, item); err != nil {
				return nil, fmt.Errorf("insert item: %w", err)
			}
			result = append(result, item)
			continue
		}

		item, ok := existing[in.ID]
		if !ok {
			return nil, fmt.Errorf("item %s in batch %s: %w", in.ID, batch.ID, ledger.ErrNotFoundOrUnauthorized)
		}
		if kept[in.ID] {
			return nil, ledger.Invalid("items", fmt.Sprintf("item %s listed twice", in.ID))
		}
		kept[in.ID] = true

		if item.Sold() && !in.SellingPrice.Equal(item.SellingPrice) {
			if err := adjustSalePrice(ctx, u, &item, in.SellingPrice); err != nil {
				return nil, err
			}
		}
		// Purchase-side changes are covered by the batch delta entry.
		item.TotalCost = item.TotalCost.Add(in.PurchasePrice.Sub(item.PurchasePrice))
		item.PurchasePrice = in.PurchasePrice
		item.SellingPrice = in.SellingPrice
		item.Name = strings.TrimSpace(in.Name)
		item.Category = in.Category
		item.ImageRef = in.ImageRef
		item.UpdatedAt = u.now
		applyMargin(&item)
		if err := u.UpdateItem(ctx, item); err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
		result = append(result, item)
	}

	for _, it := range old {
		if kept[it.ID] {
			continue
		}
		if err := u.SoftDeleteItem(ctx, it.ID, u.now); err != nil {
			return nil, fmt.Errorf("delete item: %w", err)
		}
	}
	return result, nil
}

func (c *Coordinator) replaceCosts(ctx context.Context, u *unit, batch Batch, old []OperationalCost, inputs []CostInput) ([]OperationalCost, error) {
	existing := make(map[string]OperationalCost, len(old))
	for _, oc := range old {
		existing[oc.ID] = oc
	}

	kept := make(map[string]bool, len(inputs))
	result := make([]OperationalCost, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			cost := c.newCost(batch.UserID, batch.ID, in, batch.PurchaseDate, u.now)
			if err := u.InsertCost(ctx, cost); err != nil {
				return nil, fmt.Errorf("insert cost: %w", err)
			}
			result = append(result, cost)
			continue
		}

		cost, ok := existing[in.ID]
		if !ok {
			return nil, fmt.Errorf("cost %s in batch %s: %w", in.ID, batch.ID, ledger.ErrNotFoundOrUnauthorized)
		}
		if kept[in.ID] {
			return nil, ledger.Invalid("costs", fmt.Sprintf("cost %s listed twice", in.ID))
		}
		kept[in.ID] = true

		cost.Name = strings.TrimSpace(in.Name)
		cost.Amount = in.Amount
		cost.Category = in.Category
		cost.Date = orNow(in.Date, cost.Date)
		if err := u.UpdateCost(ctx, cost); err != nil {
			return nil, fmt.Errorf("update cost: %w", err)
		}
		result = append(result, cost)
	}

	// Removed costs are hidden without a refund entry: the batch delta
	// already credited them.
	for _, oc := range old {
		if kept[oc.ID] {
			continue
		}
		if err := u.SoftDeleteCost(ctx, oc.ID, u.now); err != nil {
			return nil, fmt.Errorf("delete cost: %w", err)
		}
	}
	return result, nil
}

// =============================================================================
// ITEMS
// =============================================================================

// CreateItem adds one unsold item to an existing batch and charges its
// purchase price.
func (c *Coordinator) CreateItem(ctx context.Context, userID ledger.UserID, batchID string, in ItemInput) (Item, error) {
	if err := validateItem("item", in); err != nil {
		return Item{}, err
	}

	var item Item
	err := c.run(ctx, "create_item", userID, logrus.Fields{"batch_id": batchID}, func(u *unit) error {
		batch, err := u.GetBatch(ctx, userID, batchID)
		if err != nil {
			return err
		}

		item = c.newItem(batch, in, u.now)
		if _, err := u.record(ctx, item.PurchasePrice.Neg(), ledger.KindBatchPurchase,
			fmt.Sprintf("Purchase of %q for batch %q", item.Name, batch.Name), item.ID); err != nil {
			return err
		}
		if err := u.InsertItem(ctx, item); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		batch.TotalItems++
		batch.TotalCost = batch.TotalCost.Add(item.PurchasePrice)
		batch.UpdatedAt = u.now
		if err := u.UpdateBatch(ctx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem applies a partial update. Price edits book ledger entries as
// described at the top of this file; a status change is a sale or a
// reversal with the same checks as RegisterSale and ReverseSale.
func (c *Coordinator) UpdateItem(ctx context.Context, itemID string, userID ledger.UserID, patch ItemPatch) (Item, error) {
	if err := validatePatch(patch); err != nil {
		return Item{}, err
	}

	var item Item
	err := c.run(ctx, "update_item", userID, logrus.Fields{"item_id": itemID}, func(u *unit) error {
		var batch Batch
		var err error
		item, batch, err = loadItem(ctx, u, itemID)
		if err != nil {
			return err
		}

		if patch.PurchasePrice != nil && !patch.PurchasePrice.Equal(item.PurchasePrice) {
			delta := patch.PurchasePrice.Sub(item.PurchasePrice)
			if _, err := u.record(ctx, delta.Neg(), ledger.KindBatchPurchase,
				fmt.Sprintf("Purchase price change of %q", item.Name), item.ID); err != nil {
				return err
			}
			item.PurchasePrice = *patch.PurchasePrice
			item.TotalCost = item.TotalCost.Add(delta)
			batch.TotalCost = batch.TotalCost.Add(delta)
		}
		if patch.SellingPrice != nil && !patch.SellingPrice.Equal(item.SellingPrice) {
			if item.Sold() {
				old := item.SellingPrice
				if err := adjustSalePrice(ctx, u, &item, *patch.SellingPrice); err != nil {
					return err
				}
				batch.TotalRevenue = batch.TotalRevenue.Add(item.SellingPrice.Sub(old))
			}
			item.SellingPrice = *patch.SellingPrice
		}
		if patch.Name != nil {
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			item.Category = *patch.Category
		}
		if patch.ImageRef != nil {
			item.ImageRef = *patch.ImageRef
		}
		applyMargin(&item)
		item.UpdatedAt = u.now

		if patch.SoldStatus != nil && *patch.SoldStatus != item.SoldStatus {
			transition := applySale
			if *patch.SoldStatus == StatusUnsold {
				transition = applyReversal
			}
			if err := transition(ctx, u, &item, &batch); err != nil {
				return err
			}
		}
		return saveItem(ctx, u, item, batch)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem hides one item and takes it out of the batch counters. Like the
// batch cascade, it writes no ledger entry.
func (c *Coordinator) DeleteItem(ctx context.Context, itemID string, userID ledger.UserID) (Item, error) {
	var item Item
	err := c.run(ctx, "delete_item", userID, logrus.Fields{"item_id": itemID}, func(u *unit) error {
		var batch Batch
		var err error
		item, batch, err = loadItem(ctx, u, itemID)
		if err != nil {
			return err
		}
		if err := u.SoftDeleteItem(ctx, item.ID, u.now); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		at := u.now
		item.DeletedAt = &at

		batch.TotalItems--
		batch.TotalCost = batch.TotalCost.Sub(item.PurchasePrice)
		if item.Sold() {
			batch.TotalSold--
			batch.TotalRevenue = batch.TotalRevenue.Sub(item.SellingPrice)
		}
		batch.UpdatedAt = u.now
		if err := u.UpdateBatch(ctx, batch); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// =============================================================================
// SALE STATE MACHINE
// =============================================================================

// RegisterSale moves an item unsold → sold and credits its selling price.
func (c *Coordinator) RegisterSale(ctx context.Context, itemID string, userID ledger.UserID) (Item, error) {
	return c.transition(ctx, "register_sale", itemID, userID, applySale)
}

// ReverseSale moves an item sold → unsold and debits its selling price. It
// fails with *ledger.ReversalError when the balance no longer covers it.
func (c *Coordinator) ReverseSale(ctx context.Context, itemID string, userID ledger.UserID) (Item, error) {
	return c.transition(ctx, "reverse_sale", itemID, userID, applyReversal)
}

type transitionFunc func(ctx context.Context, u *unit, item *Item, batch *Batch) error

func (c *Coordinator) transition(ctx context.Context, op, itemID string, userID ledger.UserID, apply transitionFunc) (Item, error) {
	var item Item
	err := c.run(ctx, op, userID, logrus.Fields{"item_id": itemID}, func(u *unit) error {
		var batch Batch
		var err error
		item, batch, err = loadItem(ctx, u, itemID)
		if err != nil {
			return err
		}
		if err := apply(ctx, u, &item, &batch); err != nil {
			return err
		}
		return saveItem(ctx, u, item, batch)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func applySale(ctx context.Context, u *unit, item *Item, batch *Batch) error {
	if item.Sold() {
		return fmt.Errorf("item %s: %w", item.ID, ErrAlreadySold)
	}
	if _, err := u.record(ctx, item.SellingPrice, ledger.KindItemSale,
		fmt.Sprintf("Sale of %q", item.Name), item.ID); err != nil {
		return err
	}

	at := u.now
	item.SoldStatus = StatusSold
	item.SoldAt = &at
	item.UpdatedAt = u.now
	batch.TotalSold++
	batch.TotalRevenue = batch.TotalRevenue.Add(item.SellingPrice)
	batch.UpdatedAt = u.now
	return nil
}

func applyReversal(ctx context.Context, u *unit, item *Item, batch *Batch) error {
	if !item.Sold() {
		return fmt.Errorf("item %s: %w", item.ID, ErrAlreadyUnsold)
	}

	balance, err := u.LockBalance(ctx, u.userID)
	if err != nil {
		return fmt.Errorf("lock balance: %w", err)
	}
	if balance.CurrentAmount.LessThan(item.SellingPrice) {
		metrics.RecordRejection("insufficient_funds_for_reversal")
		return &ledger.ReversalError{
			UserID:   u.userID,
			ItemID:   item.ID,
			Current:  balance.CurrentAmount,
			Required: item.SellingPrice,
		}
	}
	if _, err := u.record(ctx, item.SellingPrice.Neg(), ledger.KindItemSaleReversal,
		fmt.Sprintf("Sale reversal of %q", item.Name), item.ID); err != nil {
		return err
	}

	item.SoldStatus = StatusUnsold
	item.SoldAt = nil
	item.UpdatedAt = u.now
	batch.TotalSold--
	batch.TotalRevenue = batch.TotalRevenue.Sub(item.SellingPrice)
	batch.UpdatedAt = u.now
	return nil
}

// adjustSalePrice books the difference when a sold item's price is edited.
func adjustSalePrice(ctx context.Context, u *unit, item *Item, price ledger.Amount) error {
	delta := price.Sub(item.SellingPrice)
	if _, err := u.record(ctx, delta, ledger.KindItemSale,
		fmt.Sprintf("Sale price adjustment of %q", item.Name), item.ID); err != nil {
		return err
	}
	item.SellingPrice = price
	return nil
}

func loadItem(ctx context.Context, u *unit, itemID string) (Item, Batch, error) {
	item, err := u.GetItem(ctx, u.userID, itemID)
	if err != nil {
		return Item{}, Batch{}, err
	}
	batch, err := u.GetBatch(ctx, u.userID, item.BatchID)
	if err != nil {
		return Item{}, Batch{}, err
	}
	return item, batch, nil
}

func saveItem(ctx context.Context, u *unit, item Item, batch Batch) error {
	if err := u.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if err := u.UpdateBatch(ctx, batch); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// =============================================================================
// OPERATIONAL COSTS
// =============================================================================

// AddCost debits a standalone or batch-attached operational cost.
func (c *Coordinator) AddCost(ctx context.Context, userID ledger.UserID, in CostInput) (OperationalCost, error) {
	if err := validateCost("cost", in); err != nil {
		return OperationalCost{}, err
	}

	var cost OperationalCost
	err := c.run(ctx, "add_cost", userID, logrus.Fields{"batch_id": in.BatchID}, func(u *unit) error {
		var batch Batch
		if in.BatchID != "" {
			var err error
			if batch, err = u.GetBatch(ctx, userID, in.BatchID); err != nil {
				return err
			}
		}

		cost = c.newCost(userID, in.BatchID, in, u.now, u.now)
		if _, err := u.record(ctx, cost.Amount.Neg(), ledger.KindOperationalCost,
			fmt.Sprintf("Operational cost: %s", cost.Name), cost.ID); err != nil {
			return err
		}
		if err := u.InsertCost(ctx, cost); err != nil {
			return fmt.Errorf("insert cost: %w", err)
		}

		if batch.ID != "" {
			batch.TotalCost = batch.TotalCost.Add(cost.Amount)
			batch.UpdatedAt = u.now
			if err := u.UpdateBatch(ctx, batch); err != nil {
				return fmt.Errorf("update batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return OperationalCost{}, err
	}
	return cost, nil
}

// DeleteCost refunds a cost and hides it in the same unit. If the refund
// cannot be written the cost stays visible.
func (c *Coordinator) DeleteCost(ctx context.Context, costID string, userID ledger.UserID) (OperationalCost, error) {
	var cost OperationalCost
	err := c.run(ctx, "delete_cost", userID, logrus.Fields{"cost_id": costID}, func(u *unit) error {
		var err error
		cost, err = u.GetCost(ctx, userID, costID)
		if err != nil {
			return err
		}

		if _, err := u.record(ctx, cost.Amount, ledger.KindOperationalCostRefund,
			fmt.Sprintf("Refund of operational cost: %s", cost.Name), cost.ID); err != nil {
			return err
		}
		if err := u.SoftDeleteCost(ctx, cost.ID, u.now); err != nil {
			return fmt.Errorf("delete cost: %w", err)
		}
		at := u.now
		cost.DeletedAt = &at

		if cost.BatchID != "" {
			batch, err := u.GetBatch(ctx, userID, cost.BatchID)
			if err != nil {
				return err
			}
			batch.TotalCost = batch.TotalCost.Sub(cost.Amount)
			batch.UpdatedAt = u.now
			if err := u.UpdateBatch(ctx, batch); err != nil {
				return fmt.Errorf("update batch: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return OperationalCost{}, err
	}
	return cost, nil
}

// =============================================================================
// CONSTRUCTION / VALIDATION
// =============================================================================

func (c *Coordinator) newItem(batch Batch, in ItemInput, now time.Time) Item {
	item := Item{
		ID:            c.newID(),
		BatchID:       batch.ID,
		UserID:        batch.UserID,
		Name:          strings.TrimSpace(in.Name),
		Category:      in.Category,
		PurchasePrice: in.PurchasePrice,
		SellingPrice:  in.SellingPrice,
		SoldStatus:    StatusUnsold,
		TotalCost:     in.PurchasePrice,
		ImageRef:      in.ImageRef,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyMargin(&item)
	return item
}

func (c *Coordinator) newCost(userID ledger.UserID, batchID string, in CostInput, date, now time.Time) OperationalCost {
	return OperationalCost{
		ID:        c.newID(),
		BatchID:   batchID,
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Amount:    in.Amount,
		Date:      orNow(in.Date, date),
		Category:  in.Category,
		CreatedAt: now,
	}
}

func orNow(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func sumItems(items []ItemInput) ledger.Amount {
	total := ledger.Zero
	for _, it := range items {
		total = total.Add(it.PurchasePrice)
	}
	return total
}

func sumCosts(costs []CostInput) ledger.Amount {
	total := ledger.Zero
	for _, oc := range costs {
		total = total.Add(oc.Amount)
	}
	return total
}

func validateBatch(name string, items []ItemInput, costs []CostInput) error {
	if strings.TrimSpace(name) == "" {
		return ledger.Invalid("name", "is required")
	}
	for i, it := range items {
		if err := validateItem(fmt.Sprintf("items[%d]", i), it); err != nil {
			return err
		}
	}
	for i, oc := range costs {
		if err := validateCost(fmt.Sprintf("costs[%d]", i), oc); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(field string, in ItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return ledger.Invalid(field+".name", "is required")
	}
	if in.PurchasePrice.IsNegative() {
		return ledger.Invalid(field+".purchase_price", "must not be negative")
	}
	if in.SellingPrice.IsNegative() {
		return ledger.Invalid(field+".selling_price", "must not be negative")
	}
	return nil
}

func validateCost(field string, in CostInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return ledger.Invalid(field+".name", "is required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: %s.amount must be positive, got %s", ledger.ErrInvalidAmount, field, in.Amount)
	}
	return nil
}

func validatePatch(p ItemPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ledger.Invalid("name", "must not be empty")
	}
	if p.PurchasePrice != nil && p.PurchasePrice.IsNegative() {
		return ledger.Invalid("purchase_price", "must not be negative")
	}
	if p.SellingPrice != nil && p.SellingPrice.IsNegative() {
		return ledger.Invalid("selling_price", "must not be negative")
	}
	if p.SoldStatus != nil && !p.SoldStatus.Valid() {
		return ledger.Invalid("sold_status", fmt.Sprintf("unknown status %q", *p.SoldStatus))
	}
	return nil
}
