// Package export renders reconciliations as spreadsheet-friendly documents.
package export

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/models"
	"github.com/shopspring/decimal"
)

// DisplayDateLayout is the date format used in exported rows.
const DisplayDateLayout = "2006/01/02"

// Header is the column row of every detail table.
var Header = []string{"日期", "說明", "動作", "金額", "備註"}

// FormatValue renders a balance with its unit: "$12.50" for currency
// (stored as cents) and "90 分鐘" for minutes. A negative currency balance
// carries the sign ahead of the symbol, "-$2.00".
func FormatValue(c models.Category, v int64) string {
	if c.IsCurrency() {
		sign := ""
		if v < 0 {
			sign = "-"
		}
		return sign + "$" + FormatMagnitude(c, v)
	}
	return strconv.FormatInt(v, 10) + " 分鐘"
}

// FormatMagnitude renders an absolute magnitude without unit.
func FormatMagnitude(c models.Category, v int64) string {
	v = models.Abs(v)
	if c.IsCurrency() {
		return decimal.New(v, -2).StringFixed(2)
	}
	return strconv.FormatInt(v, 10)
}

// DirectionLabel names the direction in the vocabulary of the category:
// deposit/deduct for money and add/use for time.
func DirectionLabel(c models.Category, d models.Direction) string {
	switch {
	case c.IsCurrency() && d == models.DirectionIncrease:
		return "儲值"
	case c.IsCurrency():
		return "扣款"
	case d == models.DirectionIncrease:
		return "增加"
	default:
		return "使用"
	}
}

// Block is the rendered form of one non-empty category.
type Block struct {
	Category models.Category
	Summary  string
	Rec      *ledger.Reconciliation
	Rows     [][]string
}

// Blocks renders the reconciliations in order, skipping categories with no
// opening, no closing and no activity.
func Blocks(recs []*ledger.Reconciliation) []Block {
	out := make([]Block, 0, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.Empty() {
			continue
		}

		txs := make([]*models.Transaction, len(rec.Transactions))
		copy(txs, rec.Transactions)
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].Before(txs[j]) })

		rows := make([][]string, 0, len(txs))
		for _, tx := range txs {
			rows = append(rows, []string{
				tx.TransactionDate.Format(DisplayDateLayout),
				tx.Description,
				DirectionLabel(rec.Category, tx.Direction),
				FormatMagnitude(rec.Category, tx.Magnitude),
				tx.Notes,
			})
		}

		out = append(out, Block{
			Category: rec.Category,
			Summary:  summary(rec),
			Rec:      rec,
			Rows:     rows,
		})
	}
	return out
}

func summary(rec *ledger.Reconciliation) string {
	return fmt.Sprintf("【%s】%s → %s",
		rec.Category.Label(),
		FormatValue(rec.Category, rec.OpeningBalance),
		FormatValue(rec.Category, rec.ClosingBalance))
}
