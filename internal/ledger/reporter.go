package ledger

import (
	"context"
	"time"

	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Reconciliation is the opening/closing picture of one category over a
// date window.
type Reconciliation struct {
	MemberID       string                `json:"member_id"`
	Category       models.Category       `json:"category"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        time.Time             `json:"end_date"`
	OpeningBalance int64                 `json:"opening_balance"`
	ClosingBalance int64                 `json:"closing_balance"`
	TotalIncrease  int64                 `json:"total_increase"`
	TotalDecrease  int64                 `json:"total_decrease"`
	Transactions   []*models.Transaction `json:"transactions"`
}

// Empty reports a window with no opening, no closing and no activity.
func (r *Reconciliation) Empty() bool {
	return r.OpeningBalance == 0 && r.ClosingBalance == 0 && len(r.Transactions) == 0
}

// ReconcileCache stores reconciliations keyed by member and window.
//
// Generation returns a per-member counter that moves on every invalidation.
// SetReconciliation must drop rec when the counter no longer equals gen, so
// a result computed before a mutation never outlives it.
type ReconcileCache interface {
	GetReconciliation(ctx context.Context, memberID string, category models.Category, start, end time.Time) (*Reconciliation, bool)
	Generation(ctx context.Context, memberID string) (int64, bool)
	SetReconciliation(ctx context.Context, rec *Reconciliation, gen int64)
}

// Reporter is a read-only consumer of the ledger.
type Reporter struct {
	store Store
	cache ReconcileCache
	log   logrus.FieldLogger
}

func NewReporter(store Store, cache ReconcileCache, logger logrus.FieldLogger) *Reporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reporter{
		store: store,
		cache: cache,
		log:   logger.WithField("component", "reporter"),
	}
}

// Reconcile computes the opening balance from the latest snapshot before
// the window (or the account seed), and the closing balance from the last
// snapshot inside it. With no activity closing equals opening.
func (r *Reporter) Reconcile(ctx context.Context, memberID string, category models.Category, start, end time.Time) (*Reconciliation, error) {
	if !category.Valid() {
		return nil, &ValidationError{Field: "category", Reason: "must be one of the six ledger categories"}
	}
	if start.IsZero() || end.IsZero() {
		return nil, &ValidationError{Field: "date", Reason: "start and end are required"}
	}
	start, end = models.DateOf(start), models.DateOf(end)
	if end.Before(start) {
		return nil, &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}

	var (
		gen       int64
		cacheable bool
	)
	if r.cache != nil {
		if rec, ok := r.cache.GetReconciliation(ctx, memberID, category, start, end); ok {
			return rec, nil
		}
		// read before the store so a concurrent mutation shows up as a newer generation
		gen, cacheable = r.cache.Generation(ctx, memberID)
	}

	acct, err := r.store.GetAccount(ctx, memberID)
	if err != nil {
		return nil, lookupErr("get account", "account", memberID, err)
	}

	rec := &Reconciliation{
		MemberID:  memberID,
		Category:  category,
		StartDate: start,
		EndDate:   end,
	}

	prior, err := r.store.LastTransactionBefore(ctx, memberID, category, start)
	switch {
	case err == nil:
		rec.OpeningBalance = prior.Snapshot()
	case isNotFound(err):
		rec.OpeningBalance = acct.Seeds.Get(category)
	default:
		return nil, storageErr("last transaction before", err)
	}

	txs, err := r.store.TransactionsBetween(ctx, memberID, category, start, end)
	if err != nil {
		return nil, storageErr("transactions between", err)
	}
	rec.Transactions = txs
	if rec.Transactions == nil {
		rec.Transactions = []*models.Transaction{}
	}

	rec.ClosingBalance = rec.OpeningBalance
	var last *models.Transaction
	for _, tx := range txs {
		switch tx.Direction {
		case models.DirectionIncrease:
			rec.TotalIncrease += models.Abs(tx.Magnitude)
		case models.DirectionDecrease:
			rec.TotalDecrease += models.Abs(tx.Magnitude)
		}
		if last == nil || last.Before(tx) {
			last = tx
		}
	}
	if last != nil {
		rec.ClosingBalance = last.Snapshot()
	}

	if cacheable {
		r.cache.SetReconciliation(ctx, rec, gen)
	}
	return rec, nil
}

// Statement reconciles every category over the calendar month containing
// month, in category order.
func (r *Reporter) Statement(ctx context.Context, memberID string, month time.Time) ([]*Reconciliation, error) {
	start, end := models.MonthRange(month)
	return r.ReconcileAll(ctx, memberID, categoryList(), start, end)
}

// ReconcileAll reconciles the given categories over one window. Categories
// are read concurrently; the result keeps the input order.
func (r *Reporter) ReconcileAll(ctx context.Context, memberID string, categories []models.Category, start, end time.Time) ([]*Reconciliation, error) {
	out := make([]*Reconciliation, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range categories {
		g.Go(func() error {
			rec, err := r.Reconcile(gctx, memberID, c, start, end)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func categoryList() []models.Category {
	out := make([]models.Category, 0, models.NumCategories)
	for _, info := range models.Categories {
		out = append(out, info.Category)
	}
	return out
}
