package models

import (
	"time"
)

// DateLayout is the wire format of transaction dates.
const DateLayout = "2006-01-02"

// MemberAccount carries the six running balances of a member. Seeds are the
// balances the account held before any ledger entry existed.
type MemberAccount struct {
	MemberID  string    `json:"member_id" db:"member_id"`
	Balances  Balances  `json:"balances"`
	Seeds     Balances  `json:"seeds"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is one signed adjustment of a single category.
type Transaction struct {
	ID              int64     `json:"id" db:"id"`
	MemberID        string    `json:"member_id" db:"member_id"`
	Category        Category  `json:"category" db:"category"`
	Direction       Direction `json:"direction" db:"adjust_type"`
	Magnitude       int64     `json:"magnitude"` // amount or minutes, by category kind
	TransactionDate time.Time `json:"transaction_date" db:"transaction_date"`
	Description     string    `json:"description" db:"description"`
	Notes           string    `json:"notes,omitempty" db:"notes"`
	BalanceAfter    Balances  `json:"balance_after"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Delta is the signed effect of the transaction on its category.
func (t *Transaction) Delta() int64 {
	return t.Direction.Signed(t.Magnitude)
}

// Snapshot is the post-adjustment balance recorded for the live category.
func (t *Transaction) Snapshot() int64 {
	return t.BalanceAfter.Get(t.Category)
}

// Before reports whether t sorts before o in ledger order
// (transaction_date, created_at, id).
func (t *Transaction) Before(o *Transaction) bool {
	if !t.TransactionDate.Equal(o.TransactionDate) {
		return t.TransactionDate.Before(o.TransactionDate)
	}
	if !t.CreatedAt.Equal(o.CreatedAt) {
		return t.CreatedAt.Before(o.CreatedAt)
	}
	return t.ID < o.ID
}

// DateOf truncates t to a calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// MonthRange returns the first and last calendar date of the month that
// contains t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
