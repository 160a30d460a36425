/*
handlers.go - HTTP API handlers for the budget ledger

PURPOSE:
  Exposes the ledger engine and the inventory coordinator via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  domain. No business rule lives here.

ENDPOINTS:
  Budget:
    GET    /api/budget                     getBudgetSummary
    POST   /api/budget/topup               topUp
    GET    /api/budget/transactions        History (kind, from, to, limit, offset)
    DELETE /api/budget/transactions/{id}   Void a transaction (correction)
    POST   /api/budget/reconcile           Compare/repair cached balance

  Batches:
    GET    /api/batches                    List live batches
    POST   /api/batches                    createBatch
    GET    /api/batches/{id}               Batch with items and costs
    PUT    /api/batches/{id}               updateBatch
    DELETE /api/batches/{id}               deleteBatch (cascade)
    POST   /api/batches/{id}/items         createItem

  Items:
    GET    /api/items                      List (batch_id, status, category)
    GET    /api/items/{id}
    PUT    /api/items/{id}                 updateItem (partial)
    DELETE /api/items/{id}
    POST   /api/items/{id}/sale            registerItemSale
    DELETE /api/items/{id}/sale            reverseItemSale

  Costs:
    GET    /api/costs                      List (batch_id, category, from, to)
    POST   /api/costs                      addOperationalCost
    DELETE /api/costs/{id}                 deleteOperationalCost

REQUEST FLOW:
  1. User id from context (RequireUser)
  2. Decode JSON body / query parameters
  3. Call the engine or coordinator
  4. Serialize response (presenter)
  5. Map errors (errors.go)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine      *ledger.Engine
	Coordinator *inventory.Coordinator
	DB          Pinger

	present presenter
	log     logrus.FieldLogger
}

type HandlerOption func(*Handler)

// WithCurrency sets the ISO code used for display strings. Defaults to USD.
func WithCurrency(code string) HandlerOption {
	return func(h *Handler) { h.present.currency = code }
}

func WithLogger(l logrus.FieldLogger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler creates a new handler.
func NewHandler(engine *ledger.Engine, coordinator *inventory.Coordinator, db Pinger, opts ...HandlerOption) *Handler {
	h := &Handler{
		Engine:      engine,
		Coordinator: coordinator,
		DB:          db,
		present:     presenter{currency: "USD"},
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		h.log.WithError(err).Error("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// GetBudget returns the balance and per-kind statistics.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Summary(r.Context(), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.summary(s))
}

// TopUp adds money to the balance.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Engine.TopUp(r.Context(), UserFrom(r.Context()), scaled(req.Amount), req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.result(res))
}

// ListTransactions returns the user's history, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		Kind:          ledger.TransactionKind(q.Get("kind")),
		IncludeVoided: q.Get("include_voided") == "true",
	}

	var err error
	if f.From, err = queryTime(q.Get("from"), "from"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.To, err = queryTime(q.Get("to"), "to"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		h.fail(w, r, err)
		return
	}

	txs, err := h.Engine.History(r.Context(), UserFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.transactions(txs))
}

// VoidTransaction marks a transaction deleted and moves the balance back.
func (h *Handler) VoidTransaction(w http.ResponseWriter, r *http.Request) {
	var req VoidRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	id := ledger.TransactionID(chi.URLParam(r, "id"))
	res, err := h.Engine.VoidTransaction(r.Context(), UserFrom(r.Context()), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.result(res))
}

// Reconcile compares the cached balance with the transaction sum.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	rec, err := h.Engine.Reconcile(r.Context(), UserFrom(r.Context()), req.Repair)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.reconciliation(rec))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Coordinator.ListBatches(r.Context(), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.batches(batches))
}

// CreateBatch charges the batch total and creates the batch.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	batch, err := h.Coordinator.CreateBatch(r.Context(), UserFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.batch(batch))
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Coordinator.GetBatch(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.batch(batch))
}

// UpdateBatch replaces the batch and books the cost delta.
func (h *Handler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	batch, err := h.Coordinator.UpdateBatch(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.batch(batch))
}

// DeleteBatch soft-deletes the batch with its items and costs.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Coordinator.DeleteBatch(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.batch(batch))
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := h.Coordinator.CreateItem(r.Context(), UserFrom(r.Context()), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.item(item))
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Coordinator.ListItems(r.Context(), UserFrom(r.Context()), inventory.ItemFilter{
		BatchID:  q.Get("batch_id"),
		Status:   inventory.SoldStatus(q.Get("status")),
		Category: q.Get("category"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.items(items))
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Coordinator.GetItem(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemPatchRequest
	if !decode(w, r, &req) {
		return
	}

	item, err := h.Coordinator.UpdateItem(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()), req.toPatch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Coordinator.DeleteItem(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

func (h *Handler) RegisterSale(w http.ResponseWriter, r *http.Request) {
	item, err := h.Coordinator.RegisterSale(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	item, err := h.Coordinator.ReverseSale(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.item(item))
}

// =============================================================================
// COST HANDLERS
// =============================================================================

func (h *Handler) ListCosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.CostFilter{BatchID: q.Get("batch_id"), Category: q.Get("category")}

	var err error
	if f.From, err = queryTime(q.Get("from"), "from"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.To, err = queryTime(q.Get("to"), "to"); err != nil {
		h.fail(w, r, err)
		return
	}

	costs, err := h.Coordinator.ListCosts(r.Context(), UserFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.costs(costs))
}

func (h *Handler) AddCost(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	cost, err := h.Coordinator.AddCost(r.Context(), UserFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.present.cost(cost))
}

// DeleteCost refunds and hides a cost.
func (h *Handler) DeleteCost(w http.ResponseWriter, r *http.Request) {
	cost, err := h.Coordinator.DeleteCost(r.Context(), chi.URLParam(r, "id"), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.cost(cost))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Coordinator.Stats(r.Context(), UserFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present.stats(s))
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body. It writes a 400 and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func queryTime(s, field string) (*time.Time, error) {
	t, err := parseDate(field, s)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

func queryInt(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ledger.Invalid(field, "must be a non-negative integer")
	}
	return n, nil
}
