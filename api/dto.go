/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger and inventory models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Requests accept amounts as JSON numbers or strings ("15.50"); they are
  rounded to 2 places. Responses carry MoneyDTO: the exact decimal string
  plus a display string formatted by go-money for the configured currency.

DATES:
  Requests accept YYYY-MM-DD or RFC3339. Responses use RFC3339 in UTC.

VALIDATION:
  Validation is done by the coordinator and engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyDTO is an amount in API responses.
type MoneyDTO struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func newMoney(a ledger.Amount, currency string) MoneyDTO {
	return MoneyDTO{Amount: a.String(), Display: formatMoney(a, currency)}
}

// formatMoney renders a with the currency's symbol and separators.
// Unknown currency codes fall back to the plain decimal.
func formatMoney(a ledger.Amount, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return a.String()
	}
	minor := a.Decimal.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// scaled rounds a request amount to the stored scale.
func scaled(a ledger.Amount) ledger.Amount {
	return ledger.AmountOf(a.Decimal)
}

func scaledPtr(a *ledger.Amount) *ledger.Amount {
	if a == nil {
		return nil
	}
	s := scaled(*a)
	return &s
}

// =============================================================================
// BUDGET
// =============================================================================

type KindStatsDTO struct {
	Kind  string   `json:"kind"`
	Total MoneyDTO `json:"total"`
	Count int      `json:"count"`
}

// BudgetDTO is the getBudgetSummary response.
type BudgetDTO struct {
	UserID           string         `json:"user_id"`
	Balance          MoneyDTO       `json:"balance"`
	TotalInflow      MoneyDTO       `json:"total_inflow"`
	TotalOutflow     MoneyDTO       `json:"total_outflow"`
	TransactionCount int            `json:"transaction_count"`
	Statistics       []KindStatsDTO `json:"statistics"`
	UpdatedAt        string         `json:"updated_at,omitempty"`
}

type TransactionDTO struct {
	ID          string   `json:"id"`
	Amount      MoneyDTO `json:"amount"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	ReferenceID string   `json:"reference_id,omitempty"`
	CreatedAt   string   `json:"created_at"`
	VoidedAt    string   `json:"voided_at,omitempty"`
}

// TransactionResultDTO is returned by top-ups and corrections.
type TransactionResultDTO struct {
	Transaction     TransactionDTO `json:"transaction"`
	PreviousBalance MoneyDTO       `json:"previous_balance"`
	Balance         MoneyDTO       `json:"balance"`
}

type TopUpRequest struct {
	Amount      ledger.Amount `json:"amount"`
	Description string        `json:"description"`
}

type VoidRequest struct {
	Reason string `json:"reason"`
}

type ReconcileRequest struct {
	Repair bool `json:"repair"`
}

type ReconciliationDTO struct {
	Stored     MoneyDTO `json:"stored"`
	Computed   MoneyDTO `json:"computed"`
	Drift      MoneyDTO `json:"drift"`
	Consistent bool     `json:"consistent"`
	Repaired   bool     `json:"repaired"`
}

// =============================================================================
// INVENTORY
// =============================================================================

type BatchDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PurchaseDate string    `json:"purchase_date"`
	TotalItems   int       `json:"total_items"`
	TotalCost    MoneyDTO  `json:"total_cost"`
	TotalSold    int       `json:"total_sold"`
	TotalRevenue MoneyDTO  `json:"total_revenue"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	DeletedAt    string    `json:"deleted_at,omitempty"`
	Items        []ItemDTO `json:"items,omitempty"`
	Costs        []CostDTO `json:"costs,omitempty"`
}

type ItemDTO struct {
	ID               string   `json:"id"`
	BatchID          string   `json:"batch_id"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	PurchasePrice    MoneyDTO `json:"purchase_price"`
	SellingPrice     MoneyDTO `json:"selling_price"`
	MarginValue      MoneyDTO `json:"margin_value"`
	MarginPercentage string   `json:"margin_percentage"`
	SoldStatus       string   `json:"sold_status"`
	SoldAt           string   `json:"sold_at,omitempty"`
	TotalCost        MoneyDTO `json:"total_cost"`
	ImageRef         string   `json:"image_ref,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	DeletedAt        string   `json:"deleted_at,omitempty"`
}

type CostDTO struct {
	ID        string   `json:"id"`
	BatchID   string   `json:"batch_id,omitempty"`
	Name      string   `json:"name"`
	Amount    MoneyDTO `json:"amount"`
	Date      string   `json:"date"`
	Category  string   `json:"category"`
	CreatedAt string   `json:"created_at"`
	DeletedAt string   `json:"deleted_at,omitempty"`
}

type StatsDTO struct {
	Batches        int      `json:"batches"`
	Items          int      `json:"items"`
	Sold           int      `json:"sold"`
	Unsold         int      `json:"unsold"`
	Invested       MoneyDTO `json:"invested"`
	Revenue        MoneyDTO `json:"revenue"`
	GrossProfit    MoneyDTO `json:"gross_profit"`
	InventoryValue MoneyDTO `json:"inventory_value"`
}

// ItemRequest creates an item, or with id set, keeps an existing one in a
// batch update.
type ItemRequest struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	PurchasePrice ledger.Amount `json:"purchase_price"`
	SellingPrice  ledger.Amount `json:"selling_price"`
	ImageRef      string        `json:"image_ref"`
}

type CostRequest struct {
	ID       string        `json:"id,omitempty"`
	BatchID  string        `json:"batch_id,omitempty"`
	Name     string        `json:"name"`
	Amount   ledger.Amount `json:"amount"`
	Category string        `json:"category"`
	Date     string        `json:"date"`
}

// BatchRequest is the body of both batch create and batch update.
type BatchRequest struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	PurchaseDate string        `json:"purchase_date"`
	Items        []ItemRequest `json:"items"`
	Costs        []CostRequest `json:"costs"`
}

// ItemPatchRequest is a partial item update; absent fields are unchanged.
type ItemPatchRequest struct {
	Name          *string        `json:"name"`
	Category      *string        `json:"category"`
	PurchasePrice *ledger.Amount `json:"purchase_price"`
	SellingPrice  *ledger.Amount `json:"selling_price"`
	ImageRef      *string        `json:"image_ref"`
	SoldStatus    *string        `json:"sold_status"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func (r ItemRequest) toInput() inventory.ItemInput {
	return inventory.ItemInput{
		ID:            r.ID,
		Name:          r.Name,
		Category:      r.Category,
		PurchasePrice: scaled(r.PurchasePrice),
		SellingPrice:  scaled(r.SellingPrice),
		ImageRef:      r.ImageRef,
	}
}

func (r CostRequest) toInput() (inventory.CostInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return inventory.CostInput{}, err
	}
	return inventory.CostInput{
		ID:       r.ID,
		BatchID:  r.BatchID,
		Name:     r.Name,
		Amount:   scaled(r.Amount),
		Category: r.Category,
		Date:     date,
	}, nil
}

func (r BatchRequest) toInput() (inventory.BatchInput, error) {
	date, err := parseDate("purchase_date", r.PurchaseDate)
	if err != nil {
		return inventory.BatchInput{}, err
	}
	in := inventory.BatchInput{
		Name:         r.Name,
		Description:  r.Description,
		PurchaseDate: date,
		Items:        make([]inventory.ItemInput, len(r.Items)),
		Costs:        make([]inventory.CostInput, len(r.Costs)),
	}
	for i, it := range r.Items {
		in.Items[i] = it.toInput()
	}
	for i, c := range r.Costs {
		if in.Costs[i], err = c.toInput(); err != nil {
			return inventory.BatchInput{}, err
		}
	}
	return in, nil
}

func (r BatchRequest) toUpdate() (inventory.BatchUpdate, error) {
	in, err := r.toInput()
	if err != nil {
		return inventory.BatchUpdate{}, err
	}
	return inventory.BatchUpdate(in), nil
}

func (r ItemPatchRequest) toPatch() inventory.ItemPatch {
	p := inventory.ItemPatch{
		Name:          r.Name,
		Category:      r.Category,
		PurchasePrice: scaledPtr(r.PurchasePrice),
		SellingPrice:  scaledPtr(r.SellingPrice),
		ImageRef:      r.ImageRef,
	}
	if r.SoldStatus != nil {
		s := inventory.SoldStatus(*r.SoldStatus)
		p.SoldStatus = &s
	}
	return p
}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty means "not given".
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ledger.Invalid(field, fmt.Sprintf("invalid date %q (use YYYY-MM-DD or RFC3339)", s))
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// presenter converts domain values to DTOs in one currency.
type presenter struct {
	currency string
}

func (p presenter) money(a ledger.Amount) MoneyDTO {
	return newMoney(a, p.currency)
}

func (p presenter) summary(s ledger.Summary) BudgetDTO {
	dto := BudgetDTO{
		UserID:           string(s.UserID),
		Balance:          p.money(s.CurrentBalance),
		TotalInflow:      p.money(s.TotalInflow),
		TotalOutflow:     p.money(s.TotalOutflow),
		TransactionCount: s.TransactionCount,
		Statistics:       make([]KindStatsDTO, 0, len(s.Statistics)),
		UpdatedAt:        formatTime(s.UpdatedAt),
	}
	for _, kind := range ledger.Kinds {
		st, ok := s.Statistics[kind]
		if !ok || st.Count == 0 {
			continue
		}
		dto.Statistics = append(dto.Statistics, KindStatsDTO{
			Kind:  string(kind),
			Total: p.money(st.Sum),
			Count: st.Count,
		})
	}
	return dto
}

func (p presenter) transaction(t ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(t.ID),
		Amount:      p.money(t.Amount),
		Kind:        string(t.Kind),
		Description: t.Description,
		ReferenceID: t.ReferenceID,
		CreatedAt:   formatTime(t.CreatedAt),
		VoidedAt:    formatTimePtr(t.DeletedAt),
	}
}

func (p presenter) transactions(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = p.transaction(t)
	}
	return dtos
}

func (p presenter) result(r ledger.Result) TransactionResultDTO {
	return TransactionResultDTO{
		Transaction:     p.transaction(r.Transaction),
		PreviousBalance: p.money(r.PreviousBalance),
		Balance:         p.money(r.UpdatedBalance),
	}
}

func (p presenter) reconciliation(r ledger.Reconciliation) ReconciliationDTO {
	return ReconciliationDTO{
		Stored:     p.money(r.Stored),
		Computed:   p.money(r.Computed),
		Drift:      p.money(r.Drift),
		Consistent: r.Consistent(),
		Repaired:   r.Repaired,
	}
}

func (p presenter) batch(b inventory.Batch) BatchDTO {
	dto := BatchDTO{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		PurchaseDate: formatTime(b.PurchaseDate),
		TotalItems:   b.TotalItems,
		TotalCost:    p.money(b.TotalCost),
		TotalSold:    b.TotalSold,
		TotalRevenue: p.money(b.TotalRevenue),
		CreatedAt:    formatTime(b.CreatedAt),
		UpdatedAt:    formatTime(b.UpdatedAt),
		DeletedAt:    formatTimePtr(b.DeletedAt),
	}
	if b.Items != nil {
		dto.Items = p.items(b.Items)
	}
	if b.Costs != nil {
		dto.Costs = p.costs(b.Costs)
	}
	return dto
}

func (p presenter) batches(bs []inventory.Batch) []BatchDTO {
	dtos := make([]BatchDTO, len(bs))
	for i, b := range bs {
		dtos[i] = p.batch(b)
	}
	return dtos
}

func (p presenter) item(it inventory.Item) ItemDTO {
	return ItemDTO{
		ID:               it.ID,
		BatchID:          it.BatchID,
		Name:             it.Name,
		Category:         it.Category,
		PurchasePrice:    p.money(it.PurchasePrice),
		SellingPrice:     p.money(it.SellingPrice),
		MarginValue:      p.money(it.MarginValue),
		MarginPercentage: it.MarginPercentage.StringFixed(2),
		SoldStatus:       string(it.SoldStatus),
		SoldAt:           formatTimePtr(it.SoldAt),
		TotalCost:        p.money(it.TotalCost),
		ImageRef:         it.ImageRef,
		CreatedAt:        formatTime(it.CreatedAt),
		UpdatedAt:        formatTime(it.UpdatedAt),
		DeletedAt:        formatTimePtr(it.DeletedAt),
	}
}

func (p presenter) items(its []inventory.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(its))
	for i, it := range its {
		dtos[i] = p.item(it)
	}
	return dtos
}

func (p presenter) cost(c inventory.OperationalCost) CostDTO {
	return CostDTO{
		ID:        c.ID,
		BatchID:   c.BatchID,
		Name:      c.Name,
		Amount:    p.money(c.Amount),
		Date:      formatTime(c.Date),
		Category:  c.Category,
		CreatedAt: formatTime(c.CreatedAt),
		DeletedAt: formatTimePtr(c.DeletedAt),
	}
}

func (p presenter) costs(cs []inventory.OperationalCost) []CostDTO {
	dtos := make([]CostDTO, len(cs))
	for i, c := range cs {
		dtos[i] = p.cost(c)
	}
	return dtos
}

func (p presenter) stats(s inventory.Stats) StatsDTO {
	return StatsDTO{
		Batches:        s.Batches,
		Items:          s.Items,
		Sold:           s.Sold,
		Unsold:         s.Unsold,
		Invested:       p.money(s.Invested),
		Revenue:        p.money(s.Revenue),
		GrossProfit:    p.money(s.GrossProfit),
		InventoryValue: p.money(s.InventoryValue),
	}
}
