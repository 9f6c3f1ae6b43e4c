package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seaclub/backend/internal/export"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/ledger/memstore"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*ledger.Reconciliation
	gens        map[string]int64
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*ledger.Reconciliation{}, gens: map[string]int64{}}
}

func cacheKey(memberID string, c models.Category, start, end time.Time) string {
	return memberID + "|" + string(c) + "|" + start.Format(models.DateLayout) + "|" + end.Format(models.DateLayout)
}

func (c *recordingCache) GetReconciliation(_ context.Context, memberID string, category models.Category, start, end time.Time) (*ledger.Reconciliation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[cacheKey(memberID, category, start, end)]
	return rec, ok
}

func (c *recordingCache) Generation(_ context.Context, memberID string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[memberID], true
}

func (c *recordingCache) SetReconciliation(_ context.Context, rec *ledger.Reconciliation, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[rec.MemberID] != gen {
		return
	}
	c.entries[cacheKey(rec.MemberID, rec.Category, rec.StartDate, rec.EndDate)] = rec
}

func (c *recordingCache) LedgerChanged(_ context.Context, change ledger.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[change.MemberID]++
	for k := range c.entries {
		if strings.HasPrefix(k, change.MemberID+"|") {
			delete(c.entries, k)
		}
	}
	c.invalidated = append(c.invalidated, change.MemberID)
}

func newLedgerService(t *testing.T, cache ledger.ReconcileCache) (*LedgerService, *memstore.Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	store := memstore.New()
	svc := NewLedgerService(store, cache, time.UTC, logger)

	_, err := svc.OpenAccount(context.Background(), "M1", models.Balances{})
	require.NoError(t, err)
	return svc, store, hook
}

func adjustment(c models.Category, d models.Direction, mag int64, day, desc string) ledger.AdjustmentInput {
	date, err := models.ParseDate(day)
	if err != nil {
		panic(err)
	}
	return ledger.AdjustmentInput{Category: c, Direction: d, Magnitude: mag, TransactionDate: date, Description: desc}
}

func auditLines(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "AUDIT: ") {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestLedgerService_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("record, edit and delete are audited", func(t *testing.T) {
		svc, _, hook := newLedgerService(t, nil)

		res, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryCash, models.DirectionIncrease, 500, "2025-01-05", "deposit"))
		require.NoError(t, err)
		assert.Equal(t, int64(500), res.Balance)

		_, err = svc.EditAdjustment(ctx, res.Transaction.ID, adjustment(models.CategoryCash, models.DirectionIncrease, 300, "2025-01-05", "deposit"))
		require.NoError(t, err)
		require.NoError(t, svc.DeleteAdjustment(ctx, res.Transaction.ID))

		lines := auditLines(hook)
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], `"event_type":"LEDGER_RECORDED"`)
		assert.Contains(t, lines[1], `"event_type":"LEDGER_EDITED"`)
		assert.Contains(t, lines[2], `"event_type":"LEDGER_DELETED"`)

		acct, err := svc.GetAccount(ctx, "M1")
		require.NoError(t, err)
		assert.Equal(t, models.Balances{}, acct.Balances)
	})

	t.Run("rejected mutation writes an error audit", func(t *testing.T) {
		svc, _, hook := newLedgerService(t, nil)

		err := svc.DeleteAdjustment(ctx, 77)
		var nf *ledger.NotFoundError
		require.True(t, errors.As(err, &nf))

		lines := auditLines(hook)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"status":"FAILED"`)
		assert.Contains(t, lines[0], `"transaction_id":"77"`)
	})

	t.Run("duplicate account", func(t *testing.T) {
		svc, _, _ := newLedgerService(t, nil)
		_, err := svc.OpenAccount(ctx, "M1", models.Balances{})
		var ve *ledger.ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("list filters by category", func(t *testing.T) {
		svc, _, _ := newLedgerService(t, nil)
		_, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryCash, models.DirectionIncrease, 500, "2025-01-05", "deposit"))
		require.NoError(t, err)
		_, err = svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryGiftBoat, models.DirectionIncrease, 60, "2025-01-06", "gift"))
		require.NoError(t, err)

		txs, err := svc.ListTransactions(ctx, "M1", "gift_boat", 0)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, models.CategoryGiftBoat, txs[0].Category)

		_, err = svc.ListTransactions(ctx, "M1", "points", 0)
		var ve *ledger.ValidationError
		assert.True(t, errors.As(err, &ve))
	})
}

func TestLedgerService_Reconcile(t *testing.T) {
	ctx := context.Background()
	cache := newRecordingCache()
	svc, _, _ := newLedgerService(t, cache)

	_, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryCash, models.DirectionIncrease, 1000, "2025-01-10", "deposit"))
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, "M1", "cash", "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.ClosingBalance)
	assert.Len(t, cache.entries, 1)

	t.Run("mutation invalidates cached windows", func(t *testing.T) {
		_, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryCash, models.DirectionDecrease, 400, "2025-01-20", "lesson"))
		require.NoError(t, err)
		assert.Empty(t, cache.entries)

		rec, err := svc.Reconcile(ctx, "M1", "cash", "2025-01-01", "2025-01-31")
		require.NoError(t, err)
		assert.Equal(t, int64(600), rec.ClosingBalance)
		assert.Equal(t, int64(400), rec.TotalDecrease)
	})

	t.Run("bad arguments", func(t *testing.T) {
		tests := []struct {
			name, category, start, end, field string
		}{
			{"unknown category", "points", "2025-01-01", "2025-01-31", "category"},
			{"missing start", "cash", "", "2025-01-31", "start_date"},
			{"bad end", "cash", "2025-01-01", "31/01/2025", "end_date"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Reconcile(ctx, "M1", tt.category, tt.start, tt.end)
				var ve *ledger.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.field, ve.Field)
			})
		}
	})
}

func TestLedgerService_Statement(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 28, 20, 0, 0, 0, time.UTC) }

	t.Run("explicit month", func(t *testing.T) {
		recs, err := svc.Statement(ctx, "M1", "2025-01")
		require.NoError(t, err)
		require.Len(t, recs, models.NumCategories)
		assert.Equal(t, "2025-01-31", recs[0].EndDate.Format(models.DateLayout))
	})

	t.Run("empty month uses the ledger timezone", func(t *testing.T) {
		taipei := time.FixedZone("Asia/Taipei", 8*60*60)
		svc.loc = taipei

		recs, err := svc.Statement(ctx, "M1", "")
		require.NoError(t, err)
		assert.Equal(t, "2025-03-01", recs[0].StartDate.Format(models.DateLayout))
	})

	t.Run("malformed month", func(t *testing.T) {
		_, err := svc.Statement(ctx, "M1", "2025/01")
		var ve *ledger.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "month", ve.Field)
	})
}

func TestLedgerService_Export(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedgerService(t, nil)

	_, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryCash, models.DirectionIncrease, 1000, "2025-01-10", "deposit"))
	require.NoError(t, err)
	_, err = svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryGiftBoat, models.DirectionIncrease, 60, "2025-01-11", "gift"))
	require.NoError(t, err)

	t.Run("selected categories in table order", func(t *testing.T) {
		var buf bytes.Buffer
		err := svc.Export(ctx, &buf, "M1", "2025-01", []string{"gift_boat", "cash"}, export.FormatCSV)
		require.NoError(t, err)

		out := buf.String()
		assert.Less(t, strings.Index(out, "儲值金"), strings.Index(out, "贈送船時"))
		assert.Contains(t, out, "2025/01/10,deposit,儲值,10.00,")
	})

	t.Run("category filter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, &buf, "M1", "2025-01", []string{"gift_boat"}, export.FormatCSV))
		assert.NotContains(t, buf.String(), "儲值金")
	})

	t.Run("nothing written on error", func(t *testing.T) {
		var buf bytes.Buffer
		err := svc.Export(ctx, &buf, "M404", "2025-01", nil, export.FormatCSV)
		var nf *ledger.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Zero(t, buf.Len())
	})
}

func TestLedgerService_Drift(t *testing.T) {
	ctx := context.Background()
	svc, store, hook := newLedgerService(t, nil)

	_, err := svc.RecordAdjustment(ctx, "M1", adjustment(models.CategoryVIPVoucher, models.DirectionIncrease, 800, "2025-01-10", "voucher"))
	require.NoError(t, err)
	store.SetBalance("M1", models.CategoryVIPVoucher, 1000)

	drifts, err := svc.Drift(ctx, "M1")
	require.NoError(t, err)
	require.Len(t, drifts, models.NumCategories)
	assert.Equal(t, int64(200), drifts[1].Drift)

	repaired, err := svc.RepairDrift(ctx, "M1", "")
	require.NoError(t, err)
	require.Len(t, repaired, models.NumCategories)

	acct, err := svc.GetAccount(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), acct.Balances.Get(models.CategoryVIPVoucher))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "balance drift repaired" {
			warned = true
		}
	}
	assert.True(t, warned)

	store.SetBalance("M1", models.CategoryCash, 40)
	repaired, err = svc.RepairDrift(ctx, "M1", "cash")
	require.NoError(t, err)
	require.Len(t, repaired, 1)
	assert.Equal(t, int64(40), repaired[0].Drift)

	store.SetBalance("M1", models.CategoryCash, 70)
	store.FailOn("UpdateBalances", errors.New("conn reset"))
	_, err = svc.RepairDrift(ctx, "M1", "")
	assert.Error(t, err)
	store.FailOn("UpdateBalances", nil)
	acct, err = svc.GetAccount(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), acct.Balances.Get(models.CategoryCash))

	_, err = svc.RepairDrift(ctx, "M1", "points")
	var ve *ledger.ValidationError
	assert.True(t, errors.As(err, &ve))
}
