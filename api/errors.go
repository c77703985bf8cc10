package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/envelope-ledger/budget"
	"github.com/warp/envelope-ledger/logging"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidJSON        = "invalid_json"
	CodeValidation         = "validation"
	CodeNotFound           = "not_found"
	CodeAlreadySettled     = "already_settled"
	CodeActivePeriodExists = "active_period_exists"
	CodeNoActivePeriod     = "no_active_period"
	CodeEarlySettlement    = "early_settlement"
	CodeSessionStage       = "session_stage"
	CodeInsufficientWallet = "insufficient_wallet"
	CodeInactiveRecord     = "inactive_record"
	CodeDuplicate          = "duplicate"
	CodeStateConflict      = "state_conflict"
	CodeStoreUnavailable   = "store_unavailable"
	CodeInternal           = "internal"
)

// conflictCodes maps the specific state-conflict sentinels to their codes.
// Order matters: the first match wins.
var conflictCodes = []struct {
	err  error
	code string
}{
	{budget.ErrAlreadySettled, CodeAlreadySettled},
	{budget.ErrActivePeriodExists, CodeActivePeriodExists},
	{budget.ErrNoActivePeriod, CodeNoActivePeriod},
	{budget.ErrEarlySettlement, CodeEarlySettlement},
	{budget.ErrSessionStage, CodeSessionStage},
	{budget.ErrInsufficientWallet, CodeInsufficientWallet},
	{budget.ErrInactiveRecord, CodeInactiveRecord},
}

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, budget.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, budget.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, budget.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, CodeDuplicate
	case errors.Is(err, budget.ErrStateConflict):
		for _, c := range conflictCodes {
			if errors.Is(err, c.err) {
				return http.StatusConflict, c.code
			}
		}
		return http.StatusConflict, CodeStateConflict
	case errors.Is(err, budget.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeDomainError renders err with the status its class maps to. Server
// side failures are logged; client errors are not.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: message, Code: code}

	var insufficient *budget.InsufficientWalletError
	switch {
	case errors.As(err, &insufficient):
		resp.Details = map[string]string{
			"wallet":    insufficient.Wallet.String(),
			"requested": insufficient.Requested.String(),
			"shortfall": insufficient.Shortfall.String(),
		}
	case err != nil:
		resp.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error(message, "error", err, "status", status)
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid JSON",
			Code:    CodeInvalidJSON,
			Details: err.Error(),
		})
		return false
	}
	return true
}
