package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan1  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
)

func sampleRec() *ledger.Reconciliation {
	return &ledger.Reconciliation{
		MemberID:       "M1",
		Category:       models.CategoryCash,
		StartDate:      jan1,
		EndDate:        jan31,
		OpeningBalance: 0,
		ClosingBalance: 200,
		TotalIncrease:  300,
		TotalDecrease:  100,
		Transactions: []*models.Transaction{{
			ID: 1, MemberID: "M1", Category: models.CategoryCash, Direction: models.DirectionIncrease,
			Magnitude: 300, TransactionDate: jan1.AddDate(0, 0, 4), Description: "deposit",
			BalanceAfter: models.Balances{300},
		}},
	}
}

func TestReconcileCache_Get(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	t.Run("hit", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		data, err := json.Marshal(sampleRec())
		require.NoError(t, err)
		mock.ExpectGet("recon:M1:cash:2025-01-01:2025-01-31").SetVal(string(data))

		rec, ok := c.GetReconciliation(ctx, "M1", models.CategoryCash, jan1, jan31)
		require.True(t, ok)
		assert.Equal(t, int64(200), rec.ClosingBalance)
		require.Len(t, rec.Transactions, 1)
		assert.Equal(t, int64(300), rec.Transactions[0].Snapshot())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:M1:cash:2025-01-01:2025-01-31").RedisNil()

		_, ok := c.GetReconciliation(ctx, "M1", models.CategoryCash, jan1, jan31)
		assert.False(t, ok)
	})

	t.Run("redis down is a miss", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		logger, hook := test.NewNullLogger()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:M1:cash:2025-01-01:2025-01-31").SetErr(errors.New("connection refused"))

		_, ok := c.GetReconciliation(ctx, "M1", models.CategoryCash, jan1, jan31)
		assert.False(t, ok)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})

	t.Run("corrupt entry is dropped", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:M1:cash:2025-01-01:2025-01-31").SetVal("{not json")
		mock.ExpectDel("recon:M1:cash:2025-01-01:2025-01-31").SetVal(1)

		_, ok := c.GetReconciliation(ctx, "M1", models.CategoryCash, jan1, jan31)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconcileCache_Generation(t *testing.T) {
	ctx := context.Background()

	t.Run("stored counter", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:gen:M1").SetVal("7")

		gen, ok := c.Generation(ctx, "M1")
		assert.True(t, ok)
		assert.Equal(t, int64(7), gen)
	})

	t.Run("missing counter is zero", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:gen:M1").RedisNil()

		gen, ok := c.Generation(ctx, "M1")
		assert.True(t, ok)
		assert.Zero(t, gen)
	})

	t.Run("read failure disables caching", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectGet("recon:gen:M1").SetErr(errors.New("connection refused"))

		_, ok := c.Generation(ctx, "M1")
		assert.False(t, ok)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "cache generation read failed", hook.LastEntry().Message)
	})
}

func TestReconcileCache_Set(t *testing.T) {
	ctx := context.Background()
	const key = "recon:M1:cash:2025-01-01:2025-01-31"

	rec := sampleRec()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	t.Run("current generation writes", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, 10*time.Minute, logger)

		mock.ExpectWatch("recon:gen:M1")
		mock.ExpectGet("recon:gen:M1").SetVal("3")
		mock.ExpectTxPipeline()
		mock.ExpectSet(key, data, 10*time.Minute).SetVal("OK")
		mock.ExpectSAdd("recon:index:M1", key).SetVal(1)
		mock.ExpectExpire("recon:index:M1", 10*time.Minute).SetVal(true)
		mock.ExpectTxPipelineExec()

		c.SetReconciliation(ctx, rec, 3)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Nil(t, hook.LastEntry())
	})

	t.Run("never invalidated member writes at zero", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, 10*time.Minute, logger)

		mock.ExpectWatch("recon:gen:M1")
		mock.ExpectGet("recon:gen:M1").RedisNil()
		mock.ExpectTxPipeline()
		mock.ExpectSet(key, data, 10*time.Minute).SetVal("OK")
		mock.ExpectSAdd("recon:index:M1", key).SetVal(1)
		mock.ExpectExpire("recon:index:M1", 10*time.Minute).SetVal(true)
		mock.ExpectTxPipelineExec()

		c.SetReconciliation(ctx, rec, 0)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("moved generation skips the write", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, 10*time.Minute, logger)

		// an invalidation bumped the counter after the reconciliation was read
		mock.ExpectWatch("recon:gen:M1")
		mock.ExpectGet("recon:gen:M1").SetVal("4")

		c.SetReconciliation(ctx, rec, 3)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Nil(t, hook.LastEntry())
	})

	t.Run("aborted transaction skips the write", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, 10*time.Minute, logger)

		mock.ExpectWatch("recon:gen:M1")
		mock.ExpectGet("recon:gen:M1").SetVal("3")
		mock.ExpectTxPipeline()
		mock.ExpectSet(key, data, 10*time.Minute).SetVal("OK")
		mock.ExpectSAdd("recon:index:M1", key).SetVal(1)
		mock.ExpectExpire("recon:index:M1", 10*time.Minute).SetVal(true)
		mock.ExpectTxPipelineExec().SetErr(redis.TxFailedErr)

		c.SetReconciliation(ctx, rec, 3)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Nil(t, hook.LastEntry())
	})

	t.Run("redis failure is logged", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, 10*time.Minute, logger)

		mock.ExpectWatch("recon:gen:M1").SetErr(errors.New("connection refused"))

		c.SetReconciliation(ctx, rec, 3)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "cache write failed", hook.LastEntry().Message)
	})
}

func TestReconcileCache_LedgerChanged(t *testing.T) {
	ctx := context.Background()

	t.Run("drops indexed keys", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectIncr("recon:gen:M1").SetVal(4)
		mock.ExpectSMembers("recon:index:M1").SetVal([]string{"recon:M1:cash:2025-01-01:2025-01-31"})
		mock.ExpectDel("recon:M1:cash:2025-01-01:2025-01-31", "recon:index:M1").SetVal(2)

		c.LedgerChanged(ctx, ledger.Change{Type: ledger.ChangeRecorded, MemberID: "M1"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure is logged", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		rdb, mock := redismock.NewClientMock()
		c := NewReconcileCache(rdb, time.Hour, logger)

		mock.ExpectIncr("recon:gen:M1").SetVal(4)
		mock.ExpectSMembers("recon:index:M1").SetErr(errors.New("timeout"))

		c.LedgerChanged(ctx, ledger.Change{Type: ledger.ChangeDeleted, MemberID: "M1"})
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "cache invalidation failed", hook.LastEntry().Message)
	})
}
