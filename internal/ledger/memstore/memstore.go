// Package memstore is an in-memory ledger.Store for tests and local runs.
// Transactions are serialized by a single mutex and rolled back by
// discarding a cloned state.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
)

type state struct {
	accounts map[string]models.MemberAccount
	txs      map[int64]models.Transaction
	nextID   int64
}

func (st *state) clone() *state {
	c := &state{
		accounts: make(map[string]models.MemberAccount, len(st.accounts)),
		txs:      make(map[int64]models.Transaction, len(st.txs)),
		nextID:   st.nextID,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.txs {
		c.txs[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	st    *state
	fails map[string]error
}

func New() *Store {
	return &Store{
		st: &state{
			accounts: map[string]models.MemberAccount{},
			txs:      map[int64]models.Transaction{},
		},
		fails: map[string]error{},
	}
}

// FailOn makes the named operation (e.g. "InsertTransaction") return err
// until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fails, op)
		return
	}
	s.fails[op] = err
}

func (s *Store) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work, fails: s.fails}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, acct *models.MemberAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateAccount(ctx, acct)
}

func (s *Store) GetAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetAccount(ctx, memberID)
}

func (s *Store) LockAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().LockAccount(ctx, memberID)
}

func (s *Store) UpdateBalances(ctx context.Context, memberID string, balances models.Balances) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateBalances(ctx, memberID, balances)
}

func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertTransaction(ctx, tx)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetTransaction(ctx, id)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateTransaction(ctx, tx)
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteTransaction(ctx, id)
}

func (s *Store) LastTransactionBefore(ctx context.Context, memberID string, category models.Category, before time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().LastTransactionBefore(ctx, memberID, category, before)
}

func (s *Store) TransactionsBetween(ctx context.Context, memberID string, category models.Category, start, end time.Time) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().TransactionsBetween(ctx, memberID, category, start, end)
}

func (s *Store) ListTransactions(ctx context.Context, q ledger.ListQuery) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListTransactions(ctx, q)
}

func (s *Store) SumDeltas(ctx context.Context, memberID string, category models.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SumDeltas(ctx, memberID, category)
}

// SetBalance overwrites a stored balance without touching history, to
// simulate drift.
func (s *Store) SetBalance(memberID string, category models.Category, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.st.accounts[memberID]
	acct.Balances.Set(category, v)
	s.st.accounts[memberID] = acct
}

func (s *Store) view() *view {
	return &view{st: s.st, fails: s.fails}
}

// view operates on a state without locking.
type view struct {
	st    *state
	fails map[string]error
}

func (v *view) fail(op string) error {
	if err, ok := v.fails[op]; ok {
		return err
	}
	return nil
}

func (v *view) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fmt.Errorf("memstore: nested transaction")
}

func (v *view) CreateAccount(_ context.Context, acct *models.MemberAccount) error {
	if err := v.fail("CreateAccount"); err != nil {
		return err
	}
	if _, ok := v.st.accounts[acct.MemberID]; ok {
		return fmt.Errorf("account %s: %w", acct.MemberID, ledger.ErrConstraintViolation)
	}
	v.st.accounts[acct.MemberID] = *acct
	return nil
}

func (v *view) GetAccount(_ context.Context, memberID string) (*models.MemberAccount, error) {
	if err := v.fail("GetAccount"); err != nil {
		return nil, err
	}
	acct, ok := v.st.accounts[memberID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", memberID, ledger.ErrNotFound)
	}
	return &acct, nil
}

func (v *view) LockAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	if err := v.fail("LockAccount"); err != nil {
		return nil, err
	}
	return v.GetAccount(ctx, memberID)
}

func (v *view) UpdateBalances(_ context.Context, memberID string, balances models.Balances) error {
	if err := v.fail("UpdateBalances"); err != nil {
		return err
	}
	acct, ok := v.st.accounts[memberID]
	if !ok {
		return fmt.Errorf("account %s: %w", memberID, ledger.ErrNotFound)
	}
	acct.Balances = balances
	v.st.accounts[memberID] = acct
	return nil
}

func (v *view) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	if err := v.fail("InsertTransaction"); err != nil {
		return err
	}
	if _, ok := v.st.accounts[tx.MemberID]; !ok {
		return fmt.Errorf("member %s: %w", tx.MemberID, ledger.ErrConstraintViolation)
	}
	v.st.nextID++
	tx.ID = v.st.nextID
	v.st.txs[tx.ID] = *tx
	return nil
}

func (v *view) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	if err := v.fail("GetTransaction"); err != nil {
		return nil, err
	}
	tx, ok := v.st.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	return &tx, nil
}

func (v *view) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	if err := v.fail("UpdateTransaction"); err != nil {
		return err
	}
	if _, ok := v.st.txs[tx.ID]; !ok {
		return fmt.Errorf("transaction %d: %w", tx.ID, ledger.ErrNotFound)
	}
	v.st.txs[tx.ID] = *tx
	return nil
}

func (v *view) DeleteTransaction(_ context.Context, id int64) error {
	if err := v.fail("DeleteTransaction"); err != nil {
		return err
	}
	if _, ok := v.st.txs[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	delete(v.st.txs, id)
	return nil
}

func (v *view) LastTransactionBefore(_ context.Context, memberID string, category models.Category, before time.Time) (*models.Transaction, error) {
	var last *models.Transaction
	for _, tx := range v.filter(memberID, category) {
		if !tx.TransactionDate.Before(before) {
			continue
		}
		if last == nil || last.Before(tx) {
			last = tx
		}
	}
	if last == nil {
		return nil, fmt.Errorf("no transaction before %s: %w", before.Format(models.DateLayout), ledger.ErrNotFound)
	}
	return last, nil
}

func (v *view) TransactionsBetween(_ context.Context, memberID string, category models.Category, start, end time.Time) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tx := range v.filter(memberID, category) {
		if tx.TransactionDate.Before(start) || tx.TransactionDate.After(end) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (v *view) ListTransactions(_ context.Context, q ledger.ListQuery) ([]*models.Transaction, error) {
	q = q.Normalize()
	out := v.filter(q.MemberID, q.Category)
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i]) })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (v *view) SumDeltas(_ context.Context, memberID string, category models.Category) (int64, error) {
	if err := v.fail("SumDeltas"); err != nil {
		return 0, err
	}
	var sum int64
	for _, tx := range v.filter(memberID, category) {
		sum += tx.Delta()
	}
	return sum, nil
}

// filter returns copies of the member's transactions, optionally limited
// to one category.
func (v *view) filter(memberID string, category models.Category) []*models.Transaction {
	var out []*models.Transaction
	for _, tx := range v.st.txs {
		if tx.MemberID != memberID {
			continue
		}
		if category != "" && tx.Category != category {
			continue
		}
		t := tx
		out = append(out, &t)
	}
	return out
}
