package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/seaclub/backend/internal/ledger"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Write renders recs in the given format.
func Write(w io.Writer, f Format, recs []*ledger.Reconciliation) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, recs)
	default:
		return WriteCSV(w, recs)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a BOM-prefixed CSV document with one blank-line-separated
// block per non-empty category.
func WriteCSV(w io.Writer, recs []*ledger.Reconciliation) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	for i, b := range Blocks(recs) {
		if i > 0 {
			// an empty record is written as a bare newline
			if err := cw.Write([]string{}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{b.Summary}); err != nil {
			return err
		}
		if len(b.Rows) == 0 {
			continue
		}
		if err := cw.Write(Header); err != nil {
			return err
		}
		if err := cw.WriteAll(b.Rows); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const summarySheet = "摘要"

var sheetNameReplacer = strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-")

// WriteXLSX writes a workbook with a summary sheet followed by one sheet per
// non-empty category.
func WriteXLSX(w io.Writer, recs []*ledger.Reconciliation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}

	summaryHeader := []string{"類別", "期初", "期末", "增加", "減少"}
	if err := setRow(f, summarySheet, 1, summaryHeader); err != nil {
		return err
	}

	blocks := Blocks(recs)
	for i, b := range blocks {
		rec := b.Rec
		row := []string{
			b.Category.Label(),
			FormatValue(b.Category, rec.OpeningBalance),
			FormatValue(b.Category, rec.ClosingBalance),
			FormatValue(b.Category, rec.TotalIncrease),
			FormatValue(b.Category, rec.TotalDecrease),
		}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}

		sheet := sheetNameReplacer.Replace(b.Category.Label())
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := setRow(f, sheet, 1, []string{b.Summary}); err != nil {
			return err
		}
		if len(b.Rows) == 0 {
			continue
		}
		if err := setRow(f, sheet, 2, Header); err != nil {
			return err
		}
		for j, r := range b.Rows {
			if err := setRow(f, sheet, j+3, r); err != nil {
				return err
			}
		}
		f.SetColWidth(sheet, "A", "A", 12)
		f.SetColWidth(sheet, "B", "B", 30)
		f.SetColWidth(sheet, "E", "E", 30)
	}
	f.SetColWidth(summarySheet, "A", "E", 16)

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
