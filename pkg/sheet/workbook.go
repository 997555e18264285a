package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

type cellRange struct {
	fromCol, fromRow int
	toCol, toRow     int
}

func (r cellRange) contains(row, col int) bool {
	return row >= r.fromRow && row <= r.toRow && col >= r.fromCol && col <= r.toCol
}

// Workbook reads the active sheet of an xlsx workbook.
type Workbook struct {
	file   *excelize.File
	sheet  string
	merged []cellRange
}

// Open parses an xlsx stream.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUnreadableSheet, "")
	}
	wb, err := FromFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return wb, nil
}

// OpenFile parses the xlsx file at path.
func OpenFile(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUnreadableSheet, "")
	}
	wb, err := FromFile(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return wb, nil
}

// FromFile wraps an already opened workbook and indexes its merged ranges.
func FromFile(f *excelize.File) (*Workbook, error) {
	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, appErrors.Clone(appErrors.ErrUnreadableSheet, "workbook has no sheets")
		}
		name = list[0]
	}
	merges, err := f.GetMergeCells(name)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrUnreadableSheet, "")
	}
	wb := &Workbook{file: f, sheet: name, merged: make([]cellRange, 0, len(merges))}
	for _, m := range merges {
		fromCol, fromRow, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrUnreadableSheet, fmt.Sprintf("bad merged range %s", m.GetStartAxis()))
		}
		toCol, toRow, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrUnreadableSheet, fmt.Sprintf("bad merged range %s", m.GetEndAxis()))
		}
		wb.merged = append(wb.merged, cellRange{fromCol: fromCol, fromRow: fromRow, toCol: toCol, toRow: toRow})
	}
	return wb, nil
}

// SheetName returns the name of the sheet being read.
func (w *Workbook) SheetName() string {
	return w.sheet
}

// CellText returns the text at 1-based (row, col), or "" for blank cells.
func (w *Workbook) CellText(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	return w.Value(name)
}

// IsMerged reports whether the cell lies in any merged range.
func (w *Workbook) IsMerged(row, col int) bool {
	for _, r := range w.merged {
		if r.contains(row, col) {
			return true
		}
	}
	return false
}

// Value returns the text of an A1-addressed cell.
func (w *Workbook) Value(cell string) string {
	value, err := w.file.GetCellValue(w.sheet, cell)
	if err != nil || strings.TrimSpace(value) == "" {
		return ""
	}
	return value
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.file.Close()
}
