package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/internal/domain/plan/service"
)

type fakePeriodService struct {
	periods []ledger.BudgetPeriod
	err     error
}

func (f *fakePeriodService) CreatePeriod(_ context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, error) {
	if _, err := ledger.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w %q", service.ErrInvalidMonth, month)
	}
	if f.err != nil {
		return nil, f.err
	}
	p := ledger.BudgetPeriod{ID: "budget-" + month, Month: month, Allocations: allocations}
	f.periods = append(f.periods, p)
	return &p, nil
}

func (f *fakePeriodService) ListPeriods(context.Context) ([]ledger.BudgetPeriod, error) {
	return f.periods, f.err
}

func newTestMux(svc PeriodService) *http.ServeMux {
	mux := http.NewServeMux()
	NewBudgetPeriodHandler(svc, slog.New(slog.NewTextHandler(os.Stdout, nil))).RegisterRoutes(mux)
	return mux
}

func TestBudgetPeriodHandler_Put(t *testing.T) {
	tests := []struct {
		name   string
		month  string
		body   string
		err    error
		status int
	}{
		{name: "with allocations", month: "2025-02", body: `{"allocations":{"cat-dining":"150"}}`, status: http.StatusOK},
		{name: "empty body", month: "2025-03", body: "", status: http.StatusOK},
		{name: "invalid month", month: "2025-13", body: "{}", status: http.StatusBadRequest},
		{name: "malformed body", month: "2025-02", body: "{", status: http.StatusBadRequest},
		{name: "store failure", month: "2025-02", body: "{}", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakePeriodService{err: tt.err}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/v1/budget-periods/"+tt.month, strings.NewReader(tt.body))

			newTestMux(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.Len(t, svc.periods, 1)
				assert.Equal(t, tt.month, svc.periods[0].Month)
				assert.Contains(t, rec.Body.String(), `"id":"budget-`+tt.month+`"`)
			}
		})
	}
}

func TestBudgetPeriodHandler_List(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(&fakePeriodService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/budget-periods", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"periods":[]}`, rec.Body.String())
	})

	t.Run("failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestMux(&fakePeriodService{err: errors.New("db down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/budget-periods", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
