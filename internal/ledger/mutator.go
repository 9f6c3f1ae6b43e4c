package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Mutator is the only component allowed to change balance fields. Every
// operation reads the account, derives a compensating delta, writes the
// account and then writes the transaction inside one store transaction.
type Mutator struct {
	store     Store
	validate  *validator.Validate
	log       logrus.FieldLogger
	observers []Observer
	now       func() time.Time
}

func NewMutator(store Store, logger logrus.FieldLogger) *Mutator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Mutator{
		store:    store,
		validate: newValidator(),
		log:      logger.WithField("component", "ledger"),
		now:      time.Now,
	}
}

// Observe registers an observer for committed mutations.
func (m *Mutator) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

// SetClock overrides the wall clock used for created_at stamps.
func (m *Mutator) SetClock(now func() time.Time) {
	m.now = now
}

// AdjustmentResult is returned by RecordAdjustment and EditAdjustment.
type AdjustmentResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Balances    models.Balances     `json:"balances"`
	// Balance is the new balance of the transaction's category.
	Balance int64 `json:"balance"`
	// Affected lists the categories whose balance changed.
	Affected []models.Category `json:"affected"`
	Warning  string            `json:"warning,omitempty"`
}

// OpenAccount creates a member account seeded with the given balances.
func (m *Mutator) OpenAccount(ctx context.Context, memberID string, seeds models.Balances) (*models.MemberAccount, error) {
	if memberID == "" {
		return nil, &ValidationError{Field: "member_id", Reason: "is required"}
	}

	now := m.now()
	acct := &models.MemberAccount{
		MemberID:  memberID,
		Balances:  seeds,
		Seeds:     seeds,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.CreateAccount(ctx, acct); err != nil {
		if isConstraint(err) {
			return nil, &ValidationError{Field: "member_id", Reason: "account already exists"}
		}
		return nil, storageErr("create account", err)
	}

	m.log.WithField("member_id", memberID).Info("member account opened")
	return acct, nil
}

// GetAccount returns the member's current balances.
func (m *Mutator) GetAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	acct, err := m.store.GetAccount(ctx, memberID)
	if err != nil {
		return nil, lookupErr("get account", "account", memberID, err)
	}
	return acct, nil
}

// ListTransactions returns live transactions in display order.
func (m *Mutator) ListTransactions(ctx context.Context, q ListQuery) ([]*models.Transaction, error) {
	if q.Category != "" && !q.Category.Valid() {
		return nil, &ValidationError{Field: "category", Reason: "must be one of the six ledger categories"}
	}
	if _, err := m.GetAccount(ctx, q.MemberID); err != nil {
		return nil, err
	}
	txs, err := m.store.ListTransactions(ctx, q.Normalize())
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	return txs, nil
}

// RecordAdjustment applies a new signed adjustment to one category and
// appends it to the ledger with the post-update balance snapshot.
func (m *Mutator) RecordAdjustment(ctx context.Context, memberID string, in AdjustmentInput) (*AdjustmentResult, error) {
	if err := validateInput(m.validate, &in); err != nil {
		return nil, err
	}

	var result *AdjustmentResult
	err := m.store.WithinTx(ctx, func(s Store) error {
		acct, err := s.LockAccount(ctx, memberID)
		if err != nil {
			return lookupErr("lock account", "account", memberID, err)
		}

		delta := in.Direction.Signed(in.Magnitude)
		acct.Balances.Add(in.Category, delta)

		if err := s.UpdateBalances(ctx, memberID, acct.Balances); err != nil {
			return storageErr("update balances", err)
		}

		now := m.now()
		tx := &models.Transaction{
			MemberID:        memberID,
			Category:        in.Category,
			Direction:       in.Direction,
			Magnitude:       models.Abs(in.Magnitude),
			TransactionDate: in.TransactionDate,
			Description:     in.Description,
			Notes:           in.Notes,
			BalanceAfter:    acct.Balances,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return storageErr("insert transaction", err)
		}

		result = newResult(tx, acct.Balances, in.Category)
		return nil
	})
	if err != nil {
		err = classify("record adjustment", err)
		m.log.WithError(err).WithFields(logrus.Fields{
			"member_id": memberID,
			"category":  in.Category,
		}).Error("record adjustment failed")
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"member_id":      memberID,
		"transaction_id": result.Transaction.ID,
		"category":       in.Category,
		"delta":          result.Transaction.Delta(),
		"balance":        result.Balance,
	}).Info("adjustment recorded")

	m.notify(ctx, Change{
		Type:          ChangeRecorded,
		MemberID:      memberID,
		TransactionID: result.Transaction.ID,
		Categories:    result.Affected,
		Balances:      result.Balances,
		Delta:         result.Transaction.Delta(),
	})
	return result, nil
}

// EditAdjustment overwrites a live transaction. The stored effect of the
// old content is reversed and the effect of the new content applied; when
// the category changes both categories are adjusted independently.
func (m *Mutator) EditAdjustment(ctx context.Context, id int64, in AdjustmentInput) (*AdjustmentResult, error) {
	if err := validateInput(m.validate, &in); err != nil {
		return nil, err
	}

	txID := strconv.FormatInt(id, 10)
	var result *AdjustmentResult
	var memberID string
	err := m.store.WithinTx(ctx, func(s Store) error {
		tx, err := s.GetTransaction(ctx, id)
		if err != nil {
			return lookupErr("get transaction", "transaction", txID, err)
		}
		memberID = tx.MemberID

		acct, err := s.LockAccount(ctx, tx.MemberID)
		if err != nil {
			return lookupErr("lock account", "account", tx.MemberID, err)
		}

		oldCategory := tx.Category
		oldDelta := tx.Direction.Signed(tx.Magnitude)
		newDelta := in.Direction.Signed(in.Magnitude)

		if in.Category == oldCategory {
			acct.Balances.Add(oldCategory, newDelta-oldDelta)
		} else {
			acct.Balances.Add(oldCategory, -oldDelta)
			acct.Balances.Add(in.Category, newDelta)
		}

		if err := s.UpdateBalances(ctx, tx.MemberID, acct.Balances); err != nil {
			return storageErr("update balances", err)
		}

		tx.Category = in.Category
		tx.Direction = in.Direction
		tx.Magnitude = models.Abs(in.Magnitude)
		tx.TransactionDate = in.TransactionDate
		tx.Description = in.Description
		tx.Notes = in.Notes
		// Only the snapshot of the category now in effect is refreshed;
		// the others keep their historical values.
		tx.BalanceAfter.Set(in.Category, acct.Balances.Get(in.Category))
		tx.UpdatedAt = m.now()

		if err := s.UpdateTransaction(ctx, tx); err != nil {
			if isNotFound(err) {
				return &NotFoundError{Resource: "transaction", ID: txID}
			}
			return storageErr("update transaction", err)
		}

		result = newResult(tx, acct.Balances, in.Category)
		if oldCategory != in.Category {
			result.Affected = []models.Category{oldCategory, in.Category}
			result.Warning = negativeWarning(acct.Balances, oldCategory, in.Category)
		}
		return nil
	})
	if err != nil {
		err = classify("edit adjustment", err)
		m.log.WithError(err).WithField("transaction_id", id).Error("edit adjustment failed")
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"member_id":      memberID,
		"transaction_id": id,
		"categories":     result.Affected,
		"balance":        result.Balance,
	}).Info("adjustment edited")

	m.notify(ctx, Change{
		Type:          ChangeEdited,
		MemberID:      memberID,
		TransactionID: id,
		Categories:    result.Affected,
		Balances:      result.Balances,
		Delta:         result.Transaction.Delta(),
	})
	return result, nil
}

// DeleteAdjustment reverses exactly what the transaction contributed and
// removes it. There is no undo.
func (m *Mutator) DeleteAdjustment(ctx context.Context, id int64) error {
	txID := strconv.FormatInt(id, 10)
	var change Change
	err := m.store.WithinTx(ctx, func(s Store) error {
		tx, err := s.GetTransaction(ctx, id)
		if err != nil {
			return lookupErr("get transaction", "transaction", txID, err)
		}

		acct, err := s.LockAccount(ctx, tx.MemberID)
		if err != nil {
			return lookupErr("lock account", "account", tx.MemberID, err)
		}

		delta := tx.Delta()
		acct.Balances.Add(tx.Category, -delta)

		if err := s.UpdateBalances(ctx, tx.MemberID, acct.Balances); err != nil {
			return storageErr("update balances", err)
		}
		if err := s.DeleteTransaction(ctx, id); err != nil {
			if isNotFound(err) {
				return &NotFoundError{Resource: "transaction", ID: txID}
			}
			return storageErr("delete transaction", err)
		}

		change = Change{
			Type:          ChangeDeleted,
			MemberID:      tx.MemberID,
			TransactionID: id,
			Categories:    []models.Category{tx.Category},
			Balances:      acct.Balances,
			Delta:         -delta,
		}
		return nil
	})
	if err != nil {
		err = classify("delete adjustment", err)
		m.log.WithError(err).WithField("transaction_id", id).Error("delete adjustment failed")
		return err
	}

	m.log.WithFields(logrus.Fields{
		"member_id":      change.MemberID,
		"transaction_id": id,
		"category":       change.Categories[0],
		"balance":        change.Balances.Get(change.Categories[0]),
	}).Info("adjustment deleted")

	m.notify(ctx, change)
	return nil
}

func (m *Mutator) notify(ctx context.Context, c Change) {
	for _, o := range m.observers {
		o.LedgerChanged(ctx, c)
	}
}

func newResult(tx *models.Transaction, balances models.Balances, category models.Category) *AdjustmentResult {
	return &AdjustmentResult{
		Transaction: tx,
		Balances:    balances,
		Balance:     balances.Get(category),
		Affected:    []models.Category{category},
		Warning:     negativeWarning(balances, category),
	}
}

func negativeWarning(balances models.Balances, categories ...models.Category) string {
	for _, c := range categories {
		if v := balances.Get(c); v < 0 {
			return fmt.Sprintf("%s balance is negative (%d)", c, v)
		}
	}
	return ""
}
