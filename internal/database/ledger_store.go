package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LedgerStore persists member accounts and their transactions in Postgres.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ ledger.Store = (*LedgerStore)(nil)

func columns(pick func(models.CategoryInfo) string) []string {
	out := make([]string, 0, models.NumCategories)
	for _, info := range models.Categories {
		out = append(out, pick(info))
	}
	return out
}

func coalesced(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "COALESCE(" + c + ", 0)"
	}
	return out
}

// placeholders returns "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

var (
	balanceCols  = columns(func(i models.CategoryInfo) string { return i.BalanceColumn })
	seedCols     = columns(func(i models.CategoryInfo) string { return i.SeedColumn })
	snapshotCols = columns(func(i models.CategoryInfo) string { return i.SnapshotColumn })

	accountSelect = "SELECT member_id, " +
		strings.Join(coalesced(balanceCols), ", ") + ", " +
		strings.Join(seedCols, ", ") +
		", created_at, updated_at FROM member_accounts"

	accountInsert = "INSERT INTO member_accounts (member_id, " +
		strings.Join(balanceCols, ", ") + ", " + strings.Join(seedCols, ", ") +
		", created_at, updated_at) VALUES (" + placeholders(1, 1+2*models.NumCategories+2) + ")"

	balancesUpdate = func() string {
		sets := make([]string, len(balanceCols))
		for i, c := range balanceCols {
			sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		}
		return "UPDATE member_accounts SET " + strings.Join(sets, ", ") +
			fmt.Sprintf(", updated_at = $%d WHERE member_id = $%d", len(sets)+1, len(sets)+2)
	}()

	txSelect = "SELECT id, member_id, category, adjust_type, amount, minutes, transaction_date, description, COALESCE(notes, ''), " +
		strings.Join(coalesced(snapshotCols), ", ") +
		", created_at, updated_at FROM member_transactions"

	txInsert = "INSERT INTO member_transactions (member_id, category, adjust_type, amount, minutes, transaction_date, description, notes, " +
		strings.Join(snapshotCols, ", ") + ", created_at, updated_at) VALUES (" +
		placeholders(1, 8+models.NumCategories+2) + ") RETURNING id"

	txUpdate = func() string {
		sets := []string{
			"category = $1", "adjust_type = $2", "amount = $3", "minutes = $4",
			"transaction_date = $5", "description = $6", "notes = $7",
		}
		for i, c := range snapshotCols {
			sets = append(sets, fmt.Sprintf("%s = $%d", c, 8+i))
		}
		n := 8 + len(snapshotCols)
		return "UPDATE member_transactions SET " + strings.Join(sets, ", ") +
			fmt.Sprintf(", updated_at = $%d WHERE id = $%d", n, n+1)
	}()
)

// Stored magnitudes are not trusted for sign.
const sumDeltasQuery = `SELECT COALESCE(SUM(
	CASE WHEN adjust_type = 'increase' THEN ABS(COALESCE(amount, minutes, 0))
	ELSE -ABS(COALESCE(amount, minutes, 0)) END), 0)
FROM member_transactions WHERE member_id = $1 AND category = $2`

// WithinTx runs fn inside a database transaction.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("store is already in a transaction")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&LedgerStore{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w, rb err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *LedgerStore) CreateAccount(ctx context.Context, acct *models.MemberAccount) error {
	args := make([]any, 0, 1+2*models.NumCategories+2)
	args = append(args, acct.MemberID)
	for _, v := range acct.Balances {
		args = append(args, v)
	}
	for _, v := range acct.Seeds {
		args = append(args, v)
	}
	args = append(args, acct.CreatedAt, acct.UpdatedAt)

	if _, err := s.db.ExecContext(ctx, accountInsert, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	row := s.db.QueryRowContext(ctx, accountSelect+" WHERE member_id = $1", memberID)
	return scanAccount(row)
}

// LockAccount holds the account row until the surrounding transaction ends.
func (s *LedgerStore) LockAccount(ctx context.Context, memberID string) (*models.MemberAccount, error) {
	row := s.db.QueryRowContext(ctx, accountSelect+" WHERE member_id = $1 FOR UPDATE", memberID)
	return scanAccount(row)
}

func (s *LedgerStore) UpdateBalances(ctx context.Context, memberID string, balances models.Balances) error {
	args := make([]any, 0, models.NumCategories+2)
	for _, v := range balances {
		args = append(args, v)
	}
	args = append(args, time.Now().UTC(), memberID)

	result, err := s.db.ExecContext(ctx, balancesUpdate, args...)
	if err != nil {
		return translate(err)
	}
	return expectOne(result, "account "+memberID)
}

func (s *LedgerStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	err := s.db.QueryRowContext(ctx, txInsert, txArgs(tx, true)...).Scan(&tx.ID)
	if err != nil {
		return translate(err)
	}
	return nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, txSelect+" WHERE id = $1", id)
	return scanTransaction(row)
}

func (s *LedgerStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	args := txArgs(tx, false)
	args = append(args, tx.UpdatedAt, tx.ID)
	result, err := s.db.ExecContext(ctx, txUpdate, args...)
	if err != nil {
		return translate(err)
	}
	return expectOne(result, fmt.Sprintf("transaction %d", tx.ID))
}

func (s *LedgerStore) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM member_transactions WHERE id = $1", id)
	if err != nil {
		return translate(err)
	}
	return expectOne(result, fmt.Sprintf("transaction %d", id))
}

func (s *LedgerStore) LastTransactionBefore(ctx context.Context, memberID string, category models.Category, before time.Time) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		txSelect+" WHERE member_id = $1 AND category = $2 AND transaction_date < $3"+
			" ORDER BY transaction_date DESC, created_at DESC, id DESC LIMIT 1",
		memberID, category, before)
	return scanTransaction(row)
}

func (s *LedgerStore) TransactionsBetween(ctx context.Context, memberID string, category models.Category, start, end time.Time) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		txSelect+" WHERE member_id = $1 AND category = $2 AND transaction_date >= $3 AND transaction_date <= $4"+
			" ORDER BY transaction_date ASC, created_at ASC, id ASC",
		memberID, category, start, end)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *LedgerStore) ListTransactions(ctx context.Context, q ledger.ListQuery) ([]*models.Transaction, error) {
	q = q.Normalize()

	query := txSelect + " WHERE member_id = $1"
	args := []any{q.MemberID}
	if q.Category != "" {
		query += " AND category = $2"
		args = append(args, q.Category)
	}
	query += fmt.Sprintf(" ORDER BY transaction_date DESC, created_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (s *LedgerStore) SumDeltas(ctx context.Context, memberID string, category models.Category) (int64, error) {
	var sum int64
	if err := s.db.QueryRowContext(ctx, sumDeltasQuery, memberID, category).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.MemberAccount, error) {
	var acct models.MemberAccount
	dest := []any{&acct.MemberID}
	for i := range acct.Balances {
		dest = append(dest, &acct.Balances[i])
	}
	for i := range acct.Seeds {
		dest = append(dest, &acct.Seeds[i])
	}
	dest = append(dest, &acct.CreatedAt, &acct.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var tx models.Transaction
	var amount, minutes sql.NullInt64
	dest := []any{
		&tx.ID, &tx.MemberID, &tx.Category, &tx.Direction,
		&amount, &minutes, &tx.TransactionDate, &tx.Description, &tx.Notes,
	}
	for i := range tx.BalanceAfter {
		dest = append(dest, &tx.BalanceAfter[i])
	}
	dest = append(dest, &tx.CreatedAt, &tx.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, translate(err)
	}

	tx.TransactionDate = models.DateOf(tx.TransactionDate)
	tx.Magnitude = magnitude(tx.Category, amount, minutes)
	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

// magnitude reads the kind-appropriate column, tolerating rows where the
// value landed in the other one.
func magnitude(c models.Category, amount, minutes sql.NullInt64) int64 {
	primary, other := minutes, amount
	if c.IsCurrency() {
		primary, other = amount, minutes
	}
	if primary.Valid {
		return models.Abs(primary.Int64)
	}
	if other.Valid {
		return models.Abs(other.Int64)
	}
	return 0
}

// txArgs returns the column values of the insert, or of the update when
// insert is false (no member_id and no timestamps).
func txArgs(tx *models.Transaction, insert bool) []any {
	var amount, minutes sql.NullInt64
	if tx.Category.IsCurrency() {
		amount = sql.NullInt64{Int64: models.Abs(tx.Magnitude), Valid: true}
	} else {
		minutes = sql.NullInt64{Int64: models.Abs(tx.Magnitude), Valid: true}
	}

	notes := sql.NullString{String: tx.Notes, Valid: tx.Notes != ""}
	args := []any{}
	if insert {
		args = append(args, tx.MemberID)
	}
	args = append(args, tx.Category, tx.Direction, amount, minutes, tx.TransactionDate, tx.Description, notes)
	for _, v := range tx.BalanceAfter {
		args = append(args, v)
	}
	if insert {
		args = append(args, tx.CreatedAt, tx.UpdatedAt)
	}
	return args
}

func expectOne(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	}
	return nil
}

// translate maps driver errors onto the ledger sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w", ledger.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503", "23514":
			return fmt.Errorf("%s: %w", pqErr.Message, ledger.ErrConstraintViolation)
		}
	}
	return err
}
