package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/ledger/memstore"
	"github.com/seaclub/backend/internal/models"
	"github.com/seaclub/backend/internal/services"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	svc := services.NewLedgerService(memstore.New(), nil, time.UTC, logger)

	r := chi.NewRouter()
	NewLedgerHandler(svc).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

const deposit = `{"category":"cash","direction":"increase","magnitude":1000,"transaction_date":"2025-01-10","description":"deposit"}`

func TestLedgerHandler_Account(t *testing.T) {
	h := newRouter(t)

	t.Run("open", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/members/M1/account", `{"seeds":{"gift_boat":60}}`)
		require.Equal(t, http.StatusCreated, w.Code)

		acct := decode[models.MemberAccount](t, w)
		assert.Equal(t, int64(60), acct.Balances.Get(models.CategoryGiftBoat))
	})

	t.Run("open twice", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/members/M1/account", `{"seeds":{}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown seed category", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/members/M2/account", `{"seeds":{"points":1}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("balances", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/balances", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"gift_boat":60`)
	})

	t.Run("balances of missing member", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/nobody/balances", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLedgerHandler_Adjustments(t *testing.T) {
	h := newRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/members/M1/account", `{"seeds":{}}`).Code)

	w := do(t, h, http.MethodPost, "/members/M1/transactions", deposit)
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[ledger.AdjustmentResult](t, w)
	assert.Equal(t, int64(1000), res.Balance)
	assert.Empty(t, res.Warning)

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name, body, field string
		}{
			{"bad category", `{"category":"points","direction":"increase","magnitude":1,"transaction_date":"2025-01-10","description":"x"}`, "category"},
			{"zero magnitude", `{"category":"cash","direction":"increase","magnitude":0,"transaction_date":"2025-01-10","description":"x"}`, "magnitude"},
			{"bad date", `{"category":"cash","direction":"increase","magnitude":1,"transaction_date":"10/01/2025","description":"x"}`, "transaction_date"},
			{"blank description", `{"category":"cash","direction":"increase","magnitude":1,"transaction_date":"2025-01-10","description":"  "}`, "description"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := do(t, h, http.MethodPost, "/members/M1/transactions", tt.body)
				require.Equal(t, http.StatusBadRequest, w.Code)
				resp := decode[services.ErrorResponse](t, w)
				assert.Contains(t, resp.Details, tt.field)
			})
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		body := strings.TrimSuffix(deposit, "}") + `,"amount":5}`
		w := do(t, h, http.MethodPost, "/members/M1/transactions", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/members/M1/transactions", deposit+deposit)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("edit moves the balance", func(t *testing.T) {
		body := `{"category":"cash","direction":"decrease","magnitude":200,"transaction_date":"2025-01-10","description":"refund"}`
		w := do(t, h, http.MethodPut, "/transactions/1", body)
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[ledger.AdjustmentResult](t, w)
		assert.Equal(t, int64(-200), res.Balance)
		assert.NotEmpty(t, res.Warning)
	})

	t.Run("edit missing", func(t *testing.T) {
		w := do(t, h, http.MethodPut, "/transactions/99", deposit)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := do(t, h, http.MethodDelete, "/transactions/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/transactions?category=cash&limit=10", "")
		require.Equal(t, http.StatusOK, w.Code)
		txs := decode[[]models.Transaction](t, w)
		require.Len(t, txs, 1)
		assert.Equal(t, "refund", txs[0].Description)

		w = do(t, h, http.MethodGet, "/members/M1/transactions?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, h, http.MethodDelete, "/transactions/1", "")
		require.Equal(t, http.StatusNoContent, w.Code)

		w = do(t, h, http.MethodDelete, "/transactions/1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = do(t, h, http.MethodGet, "/members/M1/balances", "")
		assert.Contains(t, w.Body.String(), `"cash":0`)
	})
}

func TestLedgerHandler_Reports(t *testing.T) {
	h := newRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/members/M1/account", `{"seeds":{}}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/members/M1/transactions", deposit).Code)

	t.Run("reconciliation", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/reconciliation?category=cash&start=2025-01-01&end=2025-01-31", "")
		require.Equal(t, http.StatusOK, w.Code)
		rec := decode[ledger.Reconciliation](t, w)
		assert.Equal(t, int64(0), rec.OpeningBalance)
		assert.Equal(t, int64(1000), rec.ClosingBalance)
		assert.Equal(t, int64(1000), rec.TotalIncrease)
	})

	t.Run("reconciliation with inverted window", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/reconciliation?category=cash&start=2025-02-01&end=2025-01-01", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("statement", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/statement?month=2025-01", "")
		require.Equal(t, http.StatusOK, w.Code)
		recs := decode[[]ledger.Reconciliation](t, w)
		require.Len(t, recs, models.NumCategories)
		assert.Equal(t, models.CategoryCash, recs[0].Category)
	})

	t.Run("csv export", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/export?month=2025-01&category=cash", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="statement-M1-2025-01.csv"`)
		assert.True(t, strings.HasPrefix(w.Body.String(), "\xEF\xBB\xBF【儲值金】"))
	})

	t.Run("xlsx export", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/export?month=2025-01&format=xlsx", "")
		require.Equal(t, http.StatusOK, w.Code)
		// zip container
		assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
	})

	t.Run("export errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/members/M1/export?format=pdf", "").Code)
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/members/M9/export?month=2025-01", "").Code)
	})

	t.Run("drift", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/members/M1/drift", "")
		require.Equal(t, http.StatusOK, w.Code)
		drifts := decode[[]ledger.Drift](t, w)
		require.Len(t, drifts, models.NumCategories)
		for _, d := range drifts {
			assert.True(t, d.Consistent())
		}

		w = do(t, h, http.MethodPost, "/members/M1/drift/repair?category=cash", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]ledger.Drift](t, w), 1)
	})
}
