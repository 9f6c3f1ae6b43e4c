package ledger

import (
	"context"
	"time"

	"github.com/seaclub/backend/internal/models"
)

// Store is the persistence contract of the Account Store and the
// Transaction Ledger. Lookups that find nothing return an error wrapping
// ErrNotFound.
type Store interface {
	// WithinTx runs fn against a view of the store whose writes commit
	// together or not at all.
	WithinTx(ctx context.Context, fn func(Store) error) error

	CreateAccount(ctx context.Context, acct *models.MemberAccount) error
	GetAccount(ctx context.Context, memberID string) (*models.MemberAccount, error)
	// LockAccount reads the account and holds a row lock until the
	// surrounding transaction ends.
	LockAccount(ctx context.Context, memberID string) (*models.MemberAccount, error)
	UpdateBalances(ctx context.Context, memberID string, balances models.Balances) error

	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	// LastTransactionBefore returns the latest live transaction of the
	// category dated strictly before the given date.
	LastTransactionBefore(ctx context.Context, memberID string, category models.Category, before time.Time) (*models.Transaction, error)
	// TransactionsBetween returns live transactions of the category with
	// start <= transaction_date <= end in ascending ledger order.
	TransactionsBetween(ctx context.Context, memberID string, category models.Category, start, end time.Time) ([]*models.Transaction, error)
	// ListTransactions returns live transactions in display order
	// (transaction_date desc, created_at desc).
	ListTransactions(ctx context.Context, q ListQuery) ([]*models.Transaction, error)
	// SumDeltas sums the direction-signed magnitudes of every live
	// transaction of the category.
	SumDeltas(ctx context.Context, memberID string, category models.Category) (int64, error)
}

// ListQuery filters ListTransactions. An empty Category means all.
type ListQuery struct {
	MemberID string
	Category models.Category
	Limit    int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Normalize clamps the limit into [1, MaxListLimit].
func (q ListQuery) Normalize() ListQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	return q
}
