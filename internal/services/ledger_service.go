package services

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/seaclub/backend/internal/audit"
	"github.com/seaclub/backend/internal/export"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// LedgerService is the entry point shared by the HTTP handlers and the
// operator CLI. It parses wire values, delegates to the mutator and the
// reporter, and writes audit records for rejected mutations.
type LedgerService struct {
	mutator  *ledger.Mutator
	reporter *ledger.Reporter
	audit    *audit.Logger
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewLedgerService wires the engine. cache may be nil; when it also
// observes ledger changes it is registered for invalidation.
func NewLedgerService(store ledger.Store, cache ledger.ReconcileCache, loc *time.Location, logger logrus.FieldLogger) *LedgerService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if loc == nil {
		loc = time.UTC
	}

	auditLogger := audit.NewLogger(logger)
	mutator := ledger.NewMutator(store, logger)
	mutator.Observe(auditLogger)
	if o, ok := cache.(ledger.Observer); ok {
		mutator.Observe(o)
	}

	return &LedgerService{
		mutator:  mutator,
		reporter: ledger.NewReporter(store, cache, logger),
		audit:    auditLogger,
		loc:      loc,
		now:      time.Now,
		log:      logger.WithField("component", "ledger_service"),
	}
}

// Observe registers an additional change observer, e.g. the event publisher.
func (s *LedgerService) Observe(o ledger.Observer) {
	s.mutator.Observe(o)
}

func (s *LedgerService) OpenAccount(ctx context.Context, memberID string, seeds models.Balances) (*models.MemberAccount, error) {
	acct, err := s.mutator.OpenAccount(ctx, memberID, seeds)
	if err != nil {
		s.audit.LogError("open_account", memberID, "", err)
		return nil, err
	}
	return acct, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	return s.mutator.GetAccount(ctx, memberID)
}

func (s *LedgerService) ListTransactions(ctx context.Context, memberID, category string, limit int) ([]*models.Transaction, error) {
	return s.mutator.ListTransactions(ctx, ledger.ListQuery{
		MemberID: memberID,
		Category: models.Category(category),
		Limit:    limit,
	})
}

func (s *LedgerService) RecordAdjustment(ctx context.Context, memberID string, in ledger.AdjustmentInput) (*ledger.AdjustmentResult, error) {
	res, err := s.mutator.RecordAdjustment(ctx, memberID, in)
	if err != nil {
		s.audit.LogError("record_adjustment", memberID, "", err)
		return nil, err
	}
	return res, nil
}

func (s *LedgerService) EditAdjustment(ctx context.Context, id int64, in ledger.AdjustmentInput) (*ledger.AdjustmentResult, error) {
	res, err := s.mutator.EditAdjustment(ctx, id, in)
	if err != nil {
		s.audit.LogError("edit_adjustment", "", strconv.FormatInt(id, 10), err)
		return nil, err
	}
	return res, nil
}

func (s *LedgerService) DeleteAdjustment(ctx context.Context, id int64) error {
	if err := s.mutator.DeleteAdjustment(ctx, id); err != nil {
		s.audit.LogError("delete_adjustment", "", strconv.FormatInt(id, 10), err)
		return err
	}
	return nil
}

// Reconcile parses YYYY-MM-DD bounds and reconciles one category.
func (s *LedgerService) Reconcile(ctx context.Context, memberID, category, start, end string) (*ledger.Reconciliation, error) {
	c, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	startDate, err := parseDate("start_date", start)
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate("end_date", end)
	if err != nil {
		return nil, err
	}
	return s.reporter.Reconcile(ctx, memberID, c, startDate, endDate)
}

// Statement reconciles all six categories over a YYYY-MM month. An empty
// month means the current month in the ledger timezone.
func (s *LedgerService) Statement(ctx context.Context, memberID, month string) ([]*ledger.Reconciliation, error) {
	m, err := s.parseMonth(month)
	if err != nil {
		return nil, err
	}
	return s.reporter.Statement(ctx, memberID, m)
}

// Export renders the month's reconciliations for the selected categories.
// No categories means all of them. Nothing is written on error.
func (s *LedgerService) Export(ctx context.Context, w io.Writer, memberID, month string, categories []string, format export.Format) error {
	m, err := s.parseMonth(month)
	if err != nil {
		return err
	}
	selected, err := selectCategories(categories)
	if err != nil {
		return err
	}

	start, end := models.MonthRange(m)
	recs, err := s.reporter.ReconcileAll(ctx, memberID, selected, start, end)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"member_id": memberID,
		"month":     start.Format("2006-01"),
		"format":    format,
	}).Info("ledger export rendered")
	return export.Write(w, format, recs)
}

// Drift compares every stored balance with its history.
func (s *LedgerService) Drift(ctx context.Context, memberID string) ([]*ledger.Drift, error) {
	return s.mutator.RecomputeAll(ctx, memberID)
}

// RepairDrift repairs one category, or all six in one transaction when
// category is empty.
func (s *LedgerService) RepairDrift(ctx context.Context, memberID, category string) ([]*ledger.Drift, error) {
	if category == "" {
		out, err := s.mutator.RepairAll(ctx, memberID)
		if err != nil {
			s.audit.LogError("repair_drift", memberID, "", err)
			return nil, err
		}
		return out, nil
	}

	c, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	d, err := s.mutator.RepairDrift(ctx, memberID, c)
	if err != nil {
		s.audit.LogError("repair_drift", memberID, "", err)
		return nil, err
	}
	return []*ledger.Drift{d}, nil
}

func (s *LedgerService) parseMonth(month string) (time.Time, error) {
	if month == "" {
		return s.now().In(s.loc), nil
	}
	m, err := models.ParseMonth(month)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: "month", Reason: "must be formatted as YYYY-MM"}
	}
	return m, nil
}

func parseCategory(s string) (models.Category, error) {
	c, err := models.ParseCategory(s)
	if err != nil {
		return "", &ledger.ValidationError{Field: "category", Reason: "must be one of the six ledger categories"}
	}
	return c, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &ledger.ValidationError{Field: field, Reason: "is required"}
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Reason: "must be formatted as YYYY-MM-DD"}
	}
	return d, nil
}

// selectCategories returns the requested categories in table order.
func selectCategories(names []string) ([]models.Category, error) {
	want := make(map[models.Category]bool, len(names))
	for _, n := range names {
		c, err := parseCategory(n)
		if err != nil {
			return nil, err
		}
		want[c] = true
	}

	out := make([]models.Category, 0, models.NumCategories)
	for _, info := range models.Categories {
		if len(want) == 0 || want[info.Category] {
			out = append(out, info.Category)
		}
	}
	return out, nil
}
