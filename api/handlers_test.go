/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- X-User-ID enforcement and rate limiting
- Error to status mapping (400/404/409/422)
- Batch purchase, sale, reversal and cost flows end to end over HTTP
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
	"github.com/warp/resale-ledger/store/sqlstore"
)

func newTestServer(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := ledger.NewEngine(store)
	h := NewHandler(engine, inventory.NewCoordinator(engine, store), store, WithCurrency("USD"))
	return NewRouter(h, opts)
}

func do(t *testing.T, srv http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func topUp(t *testing.T, srv http.Handler, user, amount string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/budget/topup", user, map[string]any{"amount": amount})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_RequiresUser(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})

	rec := do(t, srv, http.MethodGet, "/api/budget", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_TopUpAndBudget(t *testing.T) {
	// GIVEN: A new user
	// WHEN: Topping up 100000 and reading the budget
	// THEN: Balance and top-up statistics reflect it, formatted in USD

	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "100000")

	rec := do(t, srv, http.MethodGet, "/api/budget", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	budget := decodeBody[BudgetDTO](t, rec)
	assert.Equal(t, "100000.00", budget.Balance.Amount)
	assert.Equal(t, "$100,000.00", budget.Balance.Display)
	assert.Equal(t, 1, budget.TransactionCount)
	require.Len(t, budget.Statistics, 1)
	assert.Equal(t, "top_up", budget.Statistics[0].Kind)

	rec = do(t, srv, http.MethodPost, "/api/budget/topup", "u1", map[string]any{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decodeBody[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodPost, "/api/budget/topup", "u1", map[string]any{"amount": "ten"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateBatch_InsufficientFunds(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "20000")

	rec := do(t, srv, http.MethodPost, "/api/batches", "u1", map[string]any{
		"name":  "Estate sale",
		"items": []map[string]any{{"name": "Lamp", "purchase_price": "60000", "selling_price": "90000"}},
		"costs": []map[string]any{{"name": "Transport", "amount": "20000"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_funds", body.Code)
	require.NotNil(t, body.Current)
	require.NotNil(t, body.Required)
	assert.Equal(t, "20000.00", body.Current.Amount)
	assert.Equal(t, "80000.00", body.Required.Amount)

	rec = do(t, srv, http.MethodGet, "/api/batches", "u1", nil)
	assert.Empty(t, decodeBody[[]BatchDTO](t, rec))
}

func TestAPI_SaleFlow(t *testing.T) {
	// GIVEN: A batch with one item bought for 50000
	// WHEN: Selling it, reversing, and reversing again
	// THEN: 200, 200, then 409 already_unsold

	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "50000")

	rec := do(t, srv, http.MethodPost, "/api/batches", "u1", map[string]any{
		"name":          "Lot",
		"purchase_date": "2026-05-01",
		"items":         []map[string]any{{"name": "Clock", "purchase_price": 50000, "selling_price": 120000}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	batch := decodeBody[BatchDTO](t, rec)
	require.Len(t, batch.Items, 1)
	itemID := batch.Items[0].ID
	assert.Equal(t, "2026-05-01T00:00:00Z", batch.PurchaseDate)
	assert.Equal(t, "140.00", batch.Items[0].MarginPercentage)

	rec = do(t, srv, http.MethodPost, "/api/items/"+itemID+"/sale", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sold", decodeBody[ItemDTO](t, rec).SoldStatus)

	rec = do(t, srv, http.MethodPost, "/api/items/"+itemID+"/sale", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/items/"+itemID+"/sale", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unsold", decodeBody[ItemDTO](t, rec).SoldStatus)

	rec = do(t, srv, http.MethodDelete, "/api/items/"+itemID+"/sale", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_unsold", decodeBody[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodGet, "/api/items/"+itemID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ReversalRejected(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "100")

	rec := do(t, srv, http.MethodPost, "/api/batches", "u1", map[string]any{
		"name":  "Lot",
		"items": []map[string]any{{"name": "Vase", "purchase_price": "100", "selling_price": "300"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	itemID := decodeBody[BatchDTO](t, rec).Items[0].ID

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/items/"+itemID+"/sale", "u1", nil).Code)
	rec = do(t, srv, http.MethodPost, "/api/costs", "u1", map[string]any{"name": "Rent", "amount": "250"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/items/"+itemID+"/sale", "u1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_funds_for_reversal", body.Code)
	assert.Equal(t, "50.00", body.Current.Amount)
	assert.Equal(t, "300.00", body.Required.Amount)
}

func TestAPI_CostLifecycleAndHistory(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "50000")

	rec := do(t, srv, http.MethodPost, "/api/costs", "u1", map[string]any{"name": "Booth", "amount": "30000", "date": "2026-04-02"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cost := decodeBody[CostDTO](t, rec)

	rec = do(t, srv, http.MethodDelete, "/api/costs/"+cost.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[CostDTO](t, rec).DeletedAt)

	rec = do(t, srv, http.MethodDelete, "/api/costs/"+cost.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/budget/transactions?kind=operational_cost_refund", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody[[]TransactionDTO](t, rec)
	require.Len(t, txs, 1)
	assert.Equal(t, "30000.00", txs[0].Amount.Amount)
	assert.Equal(t, cost.ID, txs[0].ReferenceID)

	rec = do(t, srv, http.MethodGet, "/api/budget/transactions?limit=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/budget/transactions?kind=bogus", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/budget/reconcile", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ReconciliationDTO](t, rec).Consistent)
}

func TestAPI_DeleteBatchAndStats(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	topUp(t, srv, "u1", "1000")

	rec := do(t, srv, http.MethodPost, "/api/batches", "u1", map[string]any{
		"name":  "Lot",
		"items": []map[string]any{{"name": "A", "purchase_price": "100", "selling_price": "150"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	batchID := decodeBody[BatchDTO](t, rec).ID

	rec = do(t, srv, http.MethodGet, "/api/stats", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[StatsDTO](t, rec).Items)

	rec = do(t, srv, http.MethodDelete, "/api/batches/"+batchID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/stats", "u1", nil)
	stats := decodeBody[StatsDTO](t, rec)
	assert.Equal(t, 0, stats.Items)
	assert.Equal(t, 0, stats.Batches)

	rec = do(t, srv, http.MethodGet, "/api/budget", "u1", nil)
	assert.Equal(t, "900.00", decodeBody[BudgetDTO](t, rec).Balance.Amount, "no refund on batch delete")
}

func TestAPI_RejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t, RouterOptions{})
	rec := do(t, srv, http.MethodPost, "/api/budget/topup", "u1", map[string]any{"amount": "5", "currency": "EUR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RateLimitPerUser(t *testing.T) {
	srv := newTestServer(t, RouterOptions{RateLimit: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/budget", "u1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, srv, http.MethodGet, "/api/budget", "u1", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/budget", "u2", nil).Code)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(ledger.MustParseAmount("1234.5"), "USD"))
	assert.Equal(t, "-$20.00", formatMoney(ledger.MustParseAmount("-20"), "USD"))
	assert.Equal(t, "12.00", formatMoney(ledger.MustParseAmount("12"), "XXX-unknown"))
}
