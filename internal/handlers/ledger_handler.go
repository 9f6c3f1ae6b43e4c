package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/seaclub/backend/internal/export"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/seaclub/backend/internal/services"
)

const maxBodyBytes = 1_048_576

type LedgerHandler struct {
	service   *services.LedgerService
	validator *services.ValidationHelper
}

func NewLedgerHandler(service *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Routes mounts the ledger endpoints on r.
func (h *LedgerHandler) Routes(r chi.Router) {
	r.Route("/members/{memberId}", func(r chi.Router) {
		r.Post("/account", h.OpenAccount)
		r.Get("/balances", h.GetBalances)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/transactions", h.RecordAdjustment)
		r.Get("/reconciliation", h.Reconcile)
		r.Get("/statement", h.Statement)
		r.Get("/export", h.Export)
		r.Get("/drift", h.Drift)
		r.Post("/drift/repair", h.RepairDrift)
	})
	r.Put("/transactions/{txId}", h.EditAdjustment)
	r.Delete("/transactions/{txId}", h.DeleteAdjustment)
}

// OpenAccountRequest seeds a new member account.
type OpenAccountRequest struct {
	Seeds models.Balances `json:"seeds"`
}

// AdjustmentRequest is the body of record and edit calls.
type AdjustmentRequest struct {
	Category        string `json:"category" validate:"required,category"`
	Direction       string `json:"direction" validate:"required,direction"`
	Magnitude       int64  `json:"magnitude" validate:"gt=0"`
	TransactionDate string `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	Description     string `json:"description" validate:"required"`
	Notes           string `json:"notes"`
}

func (req *AdjustmentRequest) input() ledger.AdjustmentInput {
	// format already checked by the datetime tag
	date, _ := models.ParseDate(req.TransactionDate)
	return ledger.AdjustmentInput{
		Category:        models.Category(req.Category),
		Direction:       models.Direction(req.Direction),
		Magnitude:       req.Magnitude,
		TransactionDate: date,
		Description:     req.Description,
		Notes:           req.Notes,
	}
}

// OpenAccount creates a member account
// @Summary Open member account
// @Description Create the member's six balances from seed values
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param request body OpenAccountRequest true "Seed balances"
// @Success 201 {object} models.MemberAccount
// @Failure 400 {object} services.ErrorResponse
// @Router /members/{memberId}/account [post]
func (h *LedgerHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	acct, err := h.service.OpenAccount(r.Context(), chi.URLParam(r, "memberId"), req.Seeds)
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, acct)
}

// GetBalances returns the member's balances
// @Summary Get member balances
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {object} models.MemberAccount
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/balances [get]
func (h *LedgerHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "memberId"))
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, acct)
}

// ListTransactions lists ledger history
// @Summary List member transactions
// @Description Newest first by transaction date, then creation time
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param category query string false "Category filter"
// @Param limit query int false "Max rows (default 100, max 500)"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/transactions [get]
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			services.SendErrorResponse(w, "Invalid limit", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	txs, err := h.service.ListTransactions(r.Context(), chi.URLParam(r, "memberId"), q.Get("category"), limit)
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, txs)
}

// RecordAdjustment records a new adjustment
// @Summary Record adjustment
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param request body AdjustmentRequest true "Adjustment"
// @Success 201 {object} ledger.AdjustmentResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/transactions [post]
func (h *LedgerHandler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := h.service.RecordAdjustment(r.Context(), chi.URLParam(r, "memberId"), req.input())
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, res)
}

// EditAdjustment overwrites an adjustment
// @Summary Edit adjustment
// @Description Replace every field of an existing adjustment; balances are compensated
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param txId path int true "Transaction ID"
// @Param request body AdjustmentRequest true "Adjustment"
// @Success 200 {object} ledger.AdjustmentResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId} [put]
func (h *LedgerHandler) EditAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var req AdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	res, err := h.service.EditAdjustment(r.Context(), id, req.input())
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, res)
}

// DeleteAdjustment removes an adjustment
// @Summary Delete adjustment
// @Tags Ledger
// @Security BearerAuth
// @Param txId path int true "Transaction ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId} [delete]
func (h *LedgerHandler) DeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAdjustment(r.Context(), id); err != nil {
		services.SendLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reconcile reports a category over a date window
// @Summary Reconcile category
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param category query string true "Category"
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} ledger.Reconciliation
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/reconciliation [get]
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "memberId"), q.Get("category"), q.Get("start"), q.Get("end"))
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, rec)
}

// Statement reports all categories over a month
// @Summary Monthly statement
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param month query string false "Month (YYYY-MM), defaults to the current month"
// @Success 200 {array} ledger.Reconciliation
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/statement [get]
func (h *LedgerHandler) Statement(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.Statement(r.Context(), chi.URLParam(r, "memberId"), r.URL.Query().Get("month"))
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, recs)
}

// Export downloads a monthly statement
// @Summary Export statement
// @Tags Reports
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param month query string false "Month (YYYY-MM)"
// @Param category query []string false "Categories, repeatable" collectionFormat(multi)
// @Param format query string false "csv or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/export [get]
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid export format", http.StatusBadRequest, err)
		return
	}

	memberID := chi.URLParam(r, "memberId")
	month := q.Get("month")

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, memberID, month, q["category"], format); err != nil {
		services.SendLedgerError(w, err)
		return
	}

	name := "statement-" + memberID
	if month != "" {
		name += "-" + month
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+format.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Drift compares stored balances with history
// @Summary Balance drift
// @Tags Maintenance
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Success 200 {array} ledger.Drift
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/drift [get]
func (h *LedgerHandler) Drift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.service.Drift(r.Context(), chi.URLParam(r, "memberId"))
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, drifts)
}

// RepairDrift rewrites drifted balances from history
// @Summary Repair balance drift
// @Tags Maintenance
// @Produce json
// @Security BearerAuth
// @Param memberId path string true "Member ID"
// @Param category query string false "Category, all when omitted"
// @Success 200 {array} ledger.Drift
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /members/{memberId}/drift/repair [post]
func (h *LedgerHandler) RepairDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.service.RepairDrift(r.Context(), chi.URLParam(r, "memberId"), r.URL.Query().Get("category"))
	if err != nil {
		services.SendLedgerError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, drifts)
}

func transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "txId"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

// decodeJSON reads exactly one JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
