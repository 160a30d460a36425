package sqlstore

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// ROW TYPES - Column mapping for sqlx; converted to domain types at the edge
// =============================================================================

type transactionRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Amount      ledger.Amount  `db:"amount"`
	Kind        string         `db:"kind"`
	Description string         `db:"description"`
	ReferenceID sql.NullString `db:"reference_id"`
	CreatedAt   time.Time      `db:"created_at"`
	DeletedAt   sql.NullTime   `db:"deleted_at"`
}

func toTransactionRow(t ledger.Transaction) transactionRow {
	return transactionRow{
		ID:          string(t.ID),
		UserID:      string(t.UserID),
		Amount:      t.Amount,
		Kind:        string(t.Kind),
		Description: t.Description,
		ReferenceID: nullString(t.ReferenceID),
		CreatedAt:   t.CreatedAt.UTC(),
		DeletedAt:   nullTime(t.DeletedAt),
	}
}

func (r transactionRow) toTransaction() ledger.Transaction {
	return ledger.Transaction{
		ID:          ledger.TransactionID(r.ID),
		UserID:      ledger.UserID(r.UserID),
		Amount:      r.Amount,
		Kind:        ledger.TransactionKind(r.Kind),
		Description: r.Description,
		ReferenceID: r.ReferenceID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		DeletedAt:   timePtr(r.DeletedAt),
	}
}

type balanceRow struct {
	UserID        string        `db:"user_id"`
	CurrentAmount ledger.Amount `db:"current_amount"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

func (r balanceRow) toBalance() ledger.Balance {
	return ledger.Balance{
		UserID:        ledger.UserID(r.UserID),
		CurrentAmount: r.CurrentAmount,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type batchRow struct {
	ID           string        `db:"id"`
	UserID       string        `db:"user_id"`
	Name         string        `db:"name"`
	Description  string        `db:"description"`
	PurchaseDate time.Time     `db:"purchase_date"`
	TotalItems   int           `db:"total_items"`
	TotalCost    ledger.Amount `db:"total_cost"`
	TotalSold    int           `db:"total_sold"`
	TotalRevenue ledger.Amount `db:"total_revenue"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
	DeletedAt    sql.NullTime  `db:"deleted_at"`
}

func toBatchRow(b inventory.Batch) batchRow {
	return batchRow{
		ID:           b.ID,
		UserID:       string(b.UserID),
		Name:         b.Name,
		Description:  b.Description,
		PurchaseDate: b.PurchaseDate.UTC(),
		TotalItems:   b.TotalItems,
		TotalCost:    b.TotalCost,
		TotalSold:    b.TotalSold,
		TotalRevenue: b.TotalRevenue,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
		DeletedAt:    nullTime(b.DeletedAt),
	}
}

func (r batchRow) toBatch() inventory.Batch {
	return inventory.Batch{
		ID:           r.ID,
		UserID:       ledger.UserID(r.UserID),
		Name:         r.Name,
		Description:  r.Description,
		PurchaseDate: r.PurchaseDate.UTC(),
		TotalItems:   r.TotalItems,
		TotalCost:    r.TotalCost,
		TotalSold:    r.TotalSold,
		TotalRevenue: r.TotalRevenue,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		DeletedAt:    timePtr(r.DeletedAt),
	}
}

type itemRow struct {
	ID               string          `db:"id"`
	BatchID          string          `db:"batch_id"`
	UserID           string          `db:"user_id"`
	Name             string          `db:"name"`
	Category         string          `db:"category"`
	PurchasePrice    ledger.Amount   `db:"purchase_price"`
	SellingPrice     ledger.Amount   `db:"selling_price"`
	MarginValue      ledger.Amount   `db:"margin_value"`
	MarginPercentage decimal.Decimal `db:"margin_percentage"`
	SoldStatus       string          `db:"sold_status"`
	SoldAt           sql.NullTime    `db:"sold_at"`
	TotalCost        ledger.Amount   `db:"total_cost"`
	ImageRef         string          `db:"image_ref"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	DeletedAt        sql.NullTime    `db:"deleted_at"`
}

func toItemRow(it inventory.Item) itemRow {
	return itemRow{
		ID:               it.ID,
		BatchID:          it.BatchID,
		UserID:           string(it.UserID),
		Name:             it.Name,
		Category:         it.Category,
		PurchasePrice:    it.PurchasePrice,
		SellingPrice:     it.SellingPrice,
		MarginValue:      it.MarginValue,
		MarginPercentage: it.MarginPercentage,
		SoldStatus:       string(it.SoldStatus),
		SoldAt:           nullTime(it.SoldAt),
		TotalCost:        it.TotalCost,
		ImageRef:         it.ImageRef,
		CreatedAt:        it.CreatedAt.UTC(),
		UpdatedAt:        it.UpdatedAt.UTC(),
		DeletedAt:        nullTime(it.DeletedAt),
	}
}

func (r itemRow) toItem() inventory.Item {
	return inventory.Item{
		ID:               r.ID,
		BatchID:          r.BatchID,
		UserID:           ledger.UserID(r.UserID),
		Name:             r.Name,
		Category:         r.Category,
		PurchasePrice:    r.PurchasePrice,
		SellingPrice:     r.SellingPrice,
		MarginValue:      r.MarginValue,
		MarginPercentage: r.MarginPercentage,
		SoldStatus:       inventory.SoldStatus(r.SoldStatus),
		SoldAt:           timePtr(r.SoldAt),
		TotalCost:        r.TotalCost,
		ImageRef:         r.ImageRef,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		DeletedAt:        timePtr(r.DeletedAt),
	}
}

type costRow struct {
	ID        string         `db:"id"`
	BatchID   sql.NullString `db:"batch_id"`
	UserID    string         `db:"user_id"`
	Name      string         `db:"name"`
	Amount    ledger.Amount  `db:"amount"`
	Date      time.Time      `db:"date"`
	Category  string         `db:"category"`
	CreatedAt time.Time      `db:"created_at"`
	DeletedAt sql.NullTime   `db:"deleted_at"`
}

func toCostRow(c inventory.OperationalCost) costRow {
	return costRow{
		ID:        c.ID,
		BatchID:   nullString(c.BatchID),
		UserID:    string(c.UserID),
		Name:      c.Name,
		Amount:    c.Amount,
		Date:      c.Date.UTC(),
		Category:  c.Category,
		CreatedAt: c.CreatedAt.UTC(),
		DeletedAt: nullTime(c.DeletedAt),
	}
}

func (r costRow) toCost() inventory.OperationalCost {
	return inventory.OperationalCost{
		ID:        r.ID,
		BatchID:   r.BatchID.String,
		UserID:    ledger.UserID(r.UserID),
		Name:      r.Name,
		Amount:    r.Amount,
		Date:      r.Date.UTC(),
		Category:  r.Category,
		CreatedAt: r.CreatedAt.UTC(),
		DeletedAt: timePtr(r.DeletedAt),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
