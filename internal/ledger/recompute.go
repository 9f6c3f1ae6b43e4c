package ledger

import (
	"context"

	"github.com/seaclub/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Drift compares a stored balance with the value implied by history.
type Drift struct {
	MemberID string          `json:"member_id"`
	Category models.Category `json:"category"`
	Stored   int64           `json:"stored"`
	Expected int64           `json:"expected"`
	Drift    int64           `json:"drift"`
}

func (d *Drift) Consistent() bool { return d.Drift == 0 }

// RecomputeFromHistory rebuilds the expected balance as seed plus the sum
// of live deltas and reports the difference from the stored balance.
func (m *Mutator) RecomputeFromHistory(ctx context.Context, memberID string, category models.Category) (*Drift, error) {
	if !category.Valid() {
		return nil, &ValidationError{Field: "category", Reason: "must be one of the six ledger categories"}
	}
	acct, err := m.store.GetAccount(ctx, memberID)
	if err != nil {
		return nil, lookupErr("get account", "account", memberID, err)
	}
	return m.drift(ctx, m.store, acct, category)
}

// RecomputeAll runs RecomputeFromHistory for every category.
func (m *Mutator) RecomputeAll(ctx context.Context, memberID string) ([]*Drift, error) {
	acct, err := m.store.GetAccount(ctx, memberID)
	if err != nil {
		return nil, lookupErr("get account", "account", memberID, err)
	}
	out := make([]*Drift, 0, models.NumCategories)
	for _, c := range categoryList() {
		d, err := m.drift(ctx, m.store, acct, c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RepairDrift overwrites the stored balance with the history-derived value.
func (m *Mutator) RepairDrift(ctx context.Context, memberID string, category models.Category) (*Drift, error) {
	if !category.Valid() {
		return nil, &ValidationError{Field: "category", Reason: "must be one of the six ledger categories"}
	}
	drifts, err := m.repair(ctx, memberID, []models.Category{category})
	if err != nil {
		return nil, err
	}
	return drifts[0], nil
}

// RepairAll repairs every category of the account in one transaction.
// Either every drifted balance is rewritten or none is.
func (m *Mutator) RepairAll(ctx context.Context, memberID string) ([]*Drift, error) {
	return m.repair(ctx, memberID, categoryList())
}

func (m *Mutator) repair(ctx context.Context, memberID string, categories []models.Category) ([]*Drift, error) {
	drifts := make([]*Drift, 0, len(categories))
	var balances models.Balances
	err := m.store.WithinTx(ctx, func(s Store) error {
		drifts = drifts[:0]
		acct, err := s.LockAccount(ctx, memberID)
		if err != nil {
			return lookupErr("lock account", "account", memberID, err)
		}

		dirty := false
		for _, c := range categories {
			d, err := m.drift(ctx, s, acct, c)
			if err != nil {
				return err
			}
			drifts = append(drifts, d)
			if !d.Consistent() {
				acct.Balances.Set(c, d.Expected)
				dirty = true
			}
		}
		balances = acct.Balances
		if !dirty {
			return nil
		}
		if err := s.UpdateBalances(ctx, memberID, acct.Balances); err != nil {
			return storageErr("update balances", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("repair drift", err)
	}

	for _, d := range drifts {
		if d.Consistent() {
			continue
		}
		m.log.WithFields(logrus.Fields{
			"member_id": memberID,
			"category":  d.Category,
			"stored":    d.Stored,
			"expected":  d.Expected,
		}).Warn("balance drift repaired")

		m.notify(ctx, Change{
			Type:       ChangeRepaired,
			MemberID:   memberID,
			Categories: []models.Category{d.Category},
			Balances:   balances,
			Delta:      -d.Drift,
		})
	}
	return drifts, nil
}

func (m *Mutator) drift(ctx context.Context, s Store, acct *models.MemberAccount, category models.Category) (*Drift, error) {
	sum, err := s.SumDeltas(ctx, acct.MemberID, category)
	if err != nil {
		return nil, storageErr("sum deltas", err)
	}
	expected := acct.Seeds.Get(category) + sum
	stored := acct.Balances.Get(category)
	return &Drift{
		MemberID: acct.MemberID,
		Category: category,
		Stored:   stored,
		Expected: expected,
		Drift:    stored - expected,
	}, nil
}
