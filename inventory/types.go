/*
Package inventory owns batches, items and operational costs, and calls the
ledger engine whenever an inventory event moves money.

PURPOSE:
  A Batch is a purchased lot of resale items plus its operational costs.
  Buying a batch, selling or un-selling an item, and adding or removing a
  cost each change the user's budget. The Coordinator applies the inventory
  change and the ledger entry in one unit of work, so there is never an
  item without its purchase entry or a sale entry without a sold item.

BATCH TOTALS:
  total_cost is set at creation (Σ purchase prices + Σ costs) and moved only
  by explicit operations (UpdateBatch, CreateItem, UpdateItem, AddCost,
  DeleteCost, DeleteItem), each by exactly the amount it changes. Between
  those operations it equals Σ live item purchase prices + Σ live batch
  costs, which keeps UpdateBatch's delta charge exact.

SEE ALSO:
  - coordinator.go: composite operations
  - cascade.go: soft-delete cascade
  - ledger/engine.go: the guarded write path
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// ITEM STATUS
// =============================================================================

type SoldStatus string

const (
	StatusUnsold SoldStatus = "unsold"
	StatusSold   SoldStatus = "sold"
)

func (s SoldStatus) Valid() bool { return s == StatusUnsold || s == StatusSold }

// =============================================================================
// ENTITIES
// =============================================================================

type Batch struct {
	ID           string
	UserID       ledger.UserID
	Name         string
	Description  string
	PurchaseDate time.Time
	TotalItems   int
	TotalCost    ledger.Amount
	TotalSold    int
	TotalRevenue ledger.Amount
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time

	// Populated by Coordinator.GetBatch and the batch write operations.
	Items []Item
	Costs []OperationalCost
}

type Item struct {
	ID               string
	BatchID          string
	UserID           ledger.UserID
	Name             string
	Category         string
	PurchasePrice    ledger.Amount
	SellingPrice     ledger.Amount
	MarginValue      ledger.Amount
	MarginPercentage decimal.Decimal
	SoldStatus       SoldStatus
	SoldAt           *time.Time
	TotalCost        ledger.Amount // purchase price + allocated share of batch costs
	ImageRef         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

func (i Item) Sold() bool { return i.SoldStatus == StatusSold }

type OperationalCost struct {
	ID        string
	BatchID   string // empty when the cost is not tied to a batch
	UserID    ledger.UserID
	Name      string
	Amount    ledger.Amount
	Date      time.Time
	Category  string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// =============================================================================
// INPUTS
// =============================================================================

// ItemInput describes an item to create, or with ID set, an existing item
// to keep when passed to UpdateBatch.
type ItemInput struct {
	ID            string
	Name          string
	Category      string
	PurchasePrice ledger.Amount
	SellingPrice  ledger.Amount
	ImageRef      string // already-uploaded image reference
}

// CostInput describes an operational cost. ID is only meaningful in UpdateBatch.
type CostInput struct {
	ID       string
	BatchID  string
	Name     string
	Amount   ledger.Amount
	Category string
	Date     time.Time
}

type BatchInput struct {
	Name         string
	Description  string
	PurchaseDate time.Time
	Items        []ItemInput
	Costs        []CostInput
}

// BatchUpdate replaces a batch's header and its full item and cost sets.
// Existing rows are matched by ID; rows left out are soft-deleted.
type BatchUpdate struct {
	Name         string
	Description  string
	PurchaseDate time.Time
	Items        []ItemInput
	Costs        []CostInput
}

// ItemPatch is a partial item update. Nil fields are left unchanged.
type ItemPatch struct {
	Name          *string
	Category      *string
	PurchasePrice *ledger.Amount
	SellingPrice  *ledger.Amount
	ImageRef      *string
	SoldStatus    *SoldStatus
}

// =============================================================================
// FILTERS / READ MODELS
// =============================================================================

type ItemFilter struct {
	BatchID  string
	Status   SoldStatus
	Category string
}

type CostFilter struct {
	BatchID  string
	Category string
	From     *time.Time
	To       *time.Time
}

// Stats is the inventory overview shown next to the budget summary.
type Stats struct {
	Batches        int
	Items          int
	Sold           int
	Unsold         int
	Invested       ledger.Amount // Σ batch total_cost
	Revenue        ledger.Amount // Σ batch total_revenue
	GrossProfit    ledger.Amount // Σ (selling price - item total cost) over sold items
	InventoryValue ledger.Amount // Σ purchase price over unsold items
}
