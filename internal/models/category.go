package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Category identifies one of the six credit pools tracked per member.
type Category string

const (
	CategoryCash             Category = "cash"
	CategoryVIPVoucher       Category = "vip_voucher"
	CategoryDesignatedLesson Category = "designated_lesson"
	CategoryBoatVoucherA     Category = "boat_voucher_a" // G23
	CategoryBoatVoucherB     Category = "boat_voucher_b" // G21 / Panther
	CategoryGiftBoat         Category = "gift_boat"
)

// NumCategories is the size of every per-category array.
const NumCategories = 6

// ValueKind tells whether a category holds money or time.
type ValueKind int

const (
	KindCurrency ValueKind = iota // integer cents
	KindMinutes                   // integer minutes
)

// CategoryInfo is the lookup-table row for a category.
type CategoryInfo struct {
	Category       Category
	Index          int
	Kind           ValueKind
	Label          string
	BalanceColumn  string
	SnapshotColumn string
	SeedColumn     string
}

// Categories lists every category in display order. The Index of each
// entry equals its position here.
var Categories = [NumCategories]CategoryInfo{
	{CategoryCash, 0, KindCurrency, "儲值金", "balance", "balance_after", "balance_seed"},
	{CategoryVIPVoucher, 1, KindCurrency, "VIP 禮券", "vip_voucher_amount", "vip_voucher_amount_after", "vip_voucher_amount_seed"},
	{CategoryDesignatedLesson, 2, KindMinutes, "指定課程", "designated_lesson_minutes", "designated_lesson_minutes_after", "designated_lesson_minutes_seed"},
	{CategoryBoatVoucherA, 3, KindMinutes, "G23 船券", "boat_voucher_g23_minutes", "boat_voucher_g23_minutes_after", "boat_voucher_g23_minutes_seed"},
	{CategoryBoatVoucherB, 4, KindMinutes, "G21/黑豹 船券", "boat_voucher_g21_panther_minutes", "boat_voucher_g21_panther_minutes_after", "boat_voucher_g21_panther_minutes_seed"},
	{CategoryGiftBoat, 5, KindMinutes, "贈送船時", "gift_boat_hours", "gift_boat_hours_after", "gift_boat_hours_seed"},
}

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, NumCategories)
	for i, info := range Categories {
		m[info.Category] = i
	}
	return m
}()

var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory converts a raw string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Info returns the lookup-table row. It panics on an invalid category, so
// callers validate input first.
func (c Category) Info() CategoryInfo {
	i, ok := categoryIndex[c]
	if !ok {
		panic(fmt.Sprintf("models: unknown category %q", string(c)))
	}
	return Categories[i]
}

func (c Category) Kind() ValueKind { return c.Info().Kind }

func (c Category) Label() string { return c.Info().Label }

func (c Category) IsCurrency() bool { return c.Kind() == KindCurrency }

// Value implements driver.Valuer for Category
func (c Category) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}
	return string(c), nil
}

// Scan implements sql.Scanner for Category
func (c *Category) Scan(value any) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.New("type assertion to string failed")
	}

	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Direction is the declared sign of an adjustment.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

func (d Direction) Valid() bool {
	return d == DirectionIncrease || d == DirectionDecrease
}

// Signed returns the delta the adjustment contributes. The sign comes from
// the direction only; historical magnitudes may carry a stray sign, so the
// absolute value is always used.
func (d Direction) Signed(magnitude int64) int64 {
	m := Abs(magnitude)
	if d == DirectionDecrease {
		return -m
	}
	return m
}

// Balances holds one value per category, indexed by CategoryInfo.Index.
type Balances [NumCategories]int64

func (b Balances) Get(c Category) int64 { return b[c.Info().Index] }

func (b *Balances) Set(c Category, v int64) { b[c.Info().Index] = v }

func (b *Balances) Add(c Category, delta int64) { b[c.Info().Index] += delta }

// MarshalJSON renders balances as {"cash": 0, ...}.
func (b Balances) MarshalJSON() ([]byte, error) {
	m := make(map[Category]int64, NumCategories)
	for _, info := range Categories {
		m[info.Category] = b[info.Index]
	}
	return json.Marshal(m)
}

func (b *Balances) UnmarshalJSON(data []byte) error {
	var m map[Category]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for c, v := range m {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
		}
		b.Set(c, v)
	}
	return nil
}

func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
