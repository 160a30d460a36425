package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/inventory"
	"github.com/warp/resale-ledger/ledger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string    `json:"error"`
	Code     string    `json:"code,omitempty"`
	Details  string    `json:"details,omitempty"`
	Current  *MoneyDTO `json:"current,omitempty"`
	Required *MoneyDTO `json:"required,omitempty"`
}

// fail maps a ledger or inventory error to a status code. Storage detail is
// logged, not returned.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		funds    *ledger.InsufficientFundsError
		reversal *ledger.ReversalError
	)

	switch {
	case errors.As(err, &funds):
		current, required := h.present.money(funds.Current), h.present.money(funds.Required)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "insufficient funds", Code: "insufficient_funds",
			Current: &current, Required: &required,
		})
	case errors.As(err, &reversal):
		current, required := h.present.money(reversal.Current), h.present.money(reversal.Required)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "insufficient funds for reversal", Code: "insufficient_funds_for_reversal",
			Current: &current, Required: &required,
		})
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid amount", Code: "invalid_amount", Details: err.Error()})
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: "validation", Details: err.Error()})
	case errors.Is(err, inventory.ErrAlreadySold):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "item already sold", Code: "already_sold"})
	case errors.Is(err, inventory.ErrAlreadyUnsold):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "item is not sold", Code: "already_unsold"})
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})
	case ledger.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "request timed out, retry", Code: "retry"})
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
