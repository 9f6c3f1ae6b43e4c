package ledger

import (
	"context"

	"github.com/seaclub/backend/internal/models"
)

type ChangeType string

const (
	ChangeRecorded ChangeType = "recorded"
	ChangeEdited   ChangeType = "edited"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRepaired ChangeType = "repaired"
)

// Change describes a committed mutation.
type Change struct {
	Type          ChangeType
	MemberID      string
	TransactionID int64
	Categories    []models.Category
	Balances      models.Balances
	Delta         int64
}

// Observer is notified after a mutation commits. Observers must not fail
// the mutation; they log their own errors.
type Observer interface {
	LedgerChanged(ctx context.Context, c Change)
}

type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) LedgerChanged(ctx context.Context, c Change) { f(ctx, c) }
