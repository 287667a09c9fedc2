// Package handler provides HTTP handlers for budget periods
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	importhandler "github.com/FACorreiaa/statement-ingest/internal/domain/import/handler"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/internal/domain/plan/service"
)

// PeriodService is the subset of the budget period service the handler uses.
type PeriodService interface {
	CreatePeriod(ctx context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, error)
	ListPeriods(ctx context.Context) ([]ledger.BudgetPeriod, error)
}

// BudgetPeriodHandler handles budget period requests
type BudgetPeriodHandler struct {
	svc    PeriodService
	logger *slog.Logger
}

// NewBudgetPeriodHandler creates a new handler
func NewBudgetPeriodHandler(svc PeriodService, logger *slog.Logger) *BudgetPeriodHandler {
	return &BudgetPeriodHandler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the handler on mux.
func (h *BudgetPeriodHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/budget-periods", h.ListBudgetPeriods)
	mux.HandleFunc("PUT /v1/budget-periods/{month}", h.PutBudgetPeriod)
}

type putPeriodRequest struct {
	Allocations map[string]decimal.Decimal `json:"allocations"`
}

// PutBudgetPeriod gets or creates the period for a YYYY-MM month. An existing
// period is returned unchanged.
func (h *BudgetPeriodHandler) PutBudgetPeriod(w http.ResponseWriter, r *http.Request) {
	month := r.PathValue("month")

	var req putPeriodRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		importhandler.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	period, err := h.svc.CreatePeriod(r.Context(), month, req.Allocations)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMonth) {
			importhandler.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create budget period", slog.String("month", month), slog.Any("error", err))
		importhandler.WriteError(w, http.StatusInternalServerError, "failed to create budget period")
		return
	}

	importhandler.WriteJSON(w, http.StatusOK, period)
}

// ListBudgetPeriods lists all periods
func (h *BudgetPeriodHandler) ListBudgetPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.svc.ListPeriods(r.Context())
	if err != nil {
		h.logger.Error("failed to list budget periods", slog.Any("error", err))
		importhandler.WriteError(w, http.StatusInternalServerError, "failed to list budget periods")
		return
	}
	if periods == nil {
		periods = []ledger.BudgetPeriod{}
	}

	importhandler.WriteJSON(w, http.StatusOK, map[string]any{"periods": periods})
}
