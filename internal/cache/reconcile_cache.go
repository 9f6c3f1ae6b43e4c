package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconcileCache keeps reconciliations in Redis. Each member has an index
// set of its cached keys so a mutation can drop them all at once, and a
// generation counter that writes are checked against.
// Cache errors are logged and treated as misses.
type ReconcileCache struct {
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewReconcileCache(rdb *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *ReconcileCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReconcileCache{
		redis: rdb,
		ttl:   ttl,
		log:   logger.WithField("component", "reconcile_cache"),
	}
}

var (
	_ ledger.ReconcileCache = (*ReconcileCache)(nil)
	_ ledger.Observer       = (*ReconcileCache)(nil)
)

func reconKey(memberID string, c models.Category, start, end time.Time) string {
	return fmt.Sprintf("recon:%s:%s:%s:%s", memberID, c, start.Format(models.DateLayout), end.Format(models.DateLayout))
}

func indexKey(memberID string) string {
	return fmt.Sprintf("recon:index:%s", memberID)
}

// generationKey has no TTL; it must outlive every entry written against it.
func generationKey(memberID string) string {
	return fmt.Sprintf("recon:gen:%s", memberID)
}

var errStaleGeneration = errors.New("generation moved")

func parseGeneration(cmd *redis.StringCmd) (int64, error) {
	gen, err := cmd.Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *ReconcileCache) GetReconciliation(ctx context.Context, memberID string, category models.Category, start, end time.Time) (*ledger.Reconciliation, bool) {
	key := reconKey(memberID, category, start, end)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return nil, false
	}

	var rec ledger.Reconciliation
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("dropping undecodable cache entry")
		c.redis.Del(ctx, key)
		return nil, false
	}
	return &rec, true
}

func (c *ReconcileCache) Generation(ctx context.Context, memberID string) (int64, bool) {
	key := generationKey(memberID)
	gen, err := parseGeneration(c.redis.Get(ctx, key))
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache generation read failed")
		return 0, false
	}
	return gen, true
}

// SetReconciliation writes rec only while the member's generation still
// equals gen. The generation key is watched, so an invalidation landing
// between the check and the write aborts the transaction.
func (c *ReconcileCache) SetReconciliation(ctx context.Context, rec *ledger.Reconciliation, gen int64) {
	key := reconKey(rec.MemberID, rec.Category, rec.StartDate, rec.EndDate)
	idx := indexKey(rec.MemberID)
	genKey := generationKey(rec.MemberID)

	data, err := json.Marshal(rec)
	if err != nil {
		c.log.WithError(err).Warn("cache encode failed")
		return
	}

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := parseGeneration(tx.Get(ctx, genKey))
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			pipe.SAdd(ctx, idx, key)
			pipe.Expire(ctx, idx, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.log.WithFields(logrus.Fields{"key": key, "generation": gen}).Debug("skipped stale cache write")
	default:
		c.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// Invalidate bumps the member's generation, then drops every cached
// reconciliation. In-flight writes holding the old generation are refused.
func (c *ReconcileCache) Invalidate(ctx context.Context, memberID string) error {
	if err := c.redis.Incr(ctx, generationKey(memberID)).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}

	idx := indexKey(memberID)

	keys, err := c.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("read cache index: %w", err)
	}

	keys = append(keys, idx)
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	return nil
}

// LedgerChanged invalidates the member's entries after any mutation.
func (c *ReconcileCache) LedgerChanged(ctx context.Context, change ledger.Change) {
	if err := c.Invalidate(ctx, change.MemberID); err != nil {
		c.log.WithError(err).WithField("member_id", change.MemberID).Error("cache invalidation failed")
	}
}
