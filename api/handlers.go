/*
handlers.go - HTTP handlers for the savings-cooperative ledger

PURPOSE:
  Exposes the ledger engine to the form/export layer over REST. Handles
  HTTP request/response, JSON serialization and DTO validation, and
  delegates every business decision to the ledger package.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                        Enroll a member
    GET    /api/accounts/{number}               Account + kind extension
    GET    /api/accounts/{number}/booklet       Fixed-account pages
    GET    /api/accounts/{number}/operations    Merged history

  Operations:
    POST   /api/accounts/{number}/deposits      Apply a deposit
    POST   /api/accounts/{number}/withdrawals   Apply a withdrawal

  Admin:
    POST   /api/admin/accounts/{number}/reset   Destructive fixed reset
    GET    /api/admin/accounts/{number}/audit   Audit trail for an account
    GET    /api/admin/duplicates                List duplicate deposits
    POST   /api/admin/duplicates/cleanup        Remove a duplicate group

ERROR HANDLING:
  Rule errors come back as JSON with the boundary values the engine
  computed (maximum withdrawable amount, caps, leftover cases):
  - 400: Malformed request body or failed DTO validation
  - 404: Unknown account number
  - 409: Blocked account
  - 422: Business rule violated (validation, funds, capacity)
  - 503: Store unavailable after retries (diagnosis in the message)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/: The rule engines all of this delegates to
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/splane2030/SplaneDev/ledger"
)

// Handler holds the ledger engine and the shared request validator.
type Handler struct {
	engine   *ledger.Engine
	validate *validator.Validate
}

// NewHandler creates a Handler around engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// Enroll handles POST /api/accounts.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	account, err := h.engine.Enroll(r.Context(), ledger.EnrollRequest{
		LastName:            req.LastName,
		MiddleName:          req.MiddleName,
		FirstName:           req.FirstName,
		Gender:              req.Gender,
		BirthDate:           req.BirthDate,
		BirthPlace:          req.BirthPlace,
		Address:             req.Address,
		Phone:               req.Phone,
		Deputy:              req.Deputy,
		DeputyContact:       req.DeputyContact,
		Kind:                ledger.Kind(req.Kind),
		UnitAmount:          req.UnitAmount,
		StartDate:           parseDate(req.StartDate),
		EndDate:             parseDate(req.EndDate),
		TargetAmount:        req.TargetAmount,
		WithdrawalPercent:   req.WithdrawalPercent,
		WithdrawalFrequency: req.WithdrawalFrequency,
		Operator:            req.Operator,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view, err := h.engine.GetAccount(r.Context(), account.ClientNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(view))
}

// GetAccount handles GET /api/accounts/{number}. The number may be a
// client number or a card number.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetAccount(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(view))
}

// GetBooklet handles GET /api/accounts/{number}/booklet.
func (h *Handler) GetBooklet(w http.ResponseWriter, r *http.Request) {
	pages, err := h.engine.GetBooklet(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BookletPageDTO, 0, len(pages))
	total := 0
	for _, p := range pages {
		dtos = append(dtos, BookletPageDTO{Page: p.PageNumber, FilledCases: p.FilledCases})
		total += p.FilledCases
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pages":       dtos,
		"total_cases": total,
		"capacity":    ledger.MaxCases,
	})
}

// ListOperations handles GET /api/accounts/{number}/operations?limit=N.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ops, err := h.engine.ListRecentOperations(r.Context(), chi.URLParam(r, "number"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]OperationDTO, 0, len(ops))
	for _, op := range ops {
		dtos = append(dtos, OperationDTO{
			Type:       string(op.Type),
			Amount:     op.Amount,
			Reference:  op.Reference,
			Operator:   op.Operator,
			RecordedAt: op.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DEPOSITS / WITHDRAWALS
// =============================================================================

// Deposit handles POST /api/accounts/{number}/deposits.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.Deposit(r.Context(), ledger.DepositRequest{
		Number:        chi.URLParam(r, "number"),
		Amount:        req.Amount,
		Operator:      req.Operator,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositDTO(record))
}

// Withdraw handles POST /api/accounts/{number}/withdrawals.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.Withdraw(r.Context(), ledger.WithdrawRequest{
		Number:   chi.URLParam(r, "number"),
		Amount:   req.Amount,
		Mode:     ledger.WithdrawMode(req.Mode),
		Payout:   ledger.Kind(req.Payout),
		Operator: req.Operator,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(record))
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetAccount handles POST /api/admin/accounts/{number}/reset.
func (h *Handler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.engine.ResetFixedAccount(r.Context(), chi.URLParam(r, "number"), req.Operator); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// AuditTrail handles GET /api/admin/accounts/{number}/audit.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.AuditTrail(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			Action:     e.Action,
			Actor:      e.Actor,
			Detail:     e.Detail,
			RecordedAt: e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListDuplicates handles GET /api/admin/duplicates.
func (h *Handler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.engine.FindDuplicateDeposits(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]DuplicateGroupDTO, 0, len(groups))
	for _, g := range groups {
		dtos = append(dtos, DuplicateGroupDTO{
			ClientNumber: g.AccountRef,
			Amount:       g.Amount,
			RecordedAt:   g.RecordedAt,
			Count:        len(g.IDs),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CleanupDuplicates handles POST /api/admin/duplicates/cleanup.
func (h *Handler) CleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !h.decode(w, r, &req) {
		return
	}

	removed, err := h.engine.CleanupDuplicateDeposits(r.Context(),
		req.ClientNumber, req.Amount, req.RecordedAt,
		ledger.CleanupMode(req.Mode), req.Operator)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates the JSON request body. On failure it writes
// the error response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		resp := ErrorResponse{Error: "validation failed", Details: map[string]string{}}
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, fe := range vErrs {
				resp.Details[fe.Field()] = fmt.Sprintf("failed on the %q rule", fe.Tag())
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return false
	}
	return true
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps ledger errors to HTTP responses, surfacing the
// boundary values the engine computed.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		vErr *ledger.ValidationError
		fErr *ledger.InsufficientFundsError
		cErr *ledger.CapacityExceededError
		sErr *ledger.StoreUnavailableError
	)

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: vErr.Reason,
			Limit: vErr.Limit,
		})
	case errors.As(err, &fErr):
		balance := fErr.Balance
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     fErr.Error(),
			Balance:   &balance,
			MaxAmount: fErr.Max,
		})
	case errors.As(err, &cErr):
		leftover := cErr.Leftover
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:         cErr.Error(),
			LeftoverCases: &leftover,
		})
	case errors.Is(err, ledger.ErrAccountBlocked):
		writeError(w, http.StatusConflict, "account is blocked")
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.As(err, &sErr):
		writeError(w, http.StatusServiceUnavailable, sErr.Error())
	case ledger.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error: "+err.Error())
	}
}
