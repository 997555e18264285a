package timetable

import (
	"time"
)

// fakeSheet is an in-memory SheetSource.
type fakeSheet struct {
	header string
	cells  map[[2]int]string
	merged map[[2]int]bool
}

func newFakeSheet(header string) *fakeSheet {
	return &fakeSheet{header: header, cells: map[[2]int]string{}, merged: map[[2]int]bool{}}
}

func (s *fakeSheet) set(row, col int, text string) *fakeSheet {
	s.cells[[2]int{row, col}] = text
	return s
}

func (s *fakeSheet) merge(row, col int) *fakeSheet {
	s.merged[[2]int{row, col}] = true
	return s
}

func (s *fakeSheet) CellText(row, col int) string { return s.cells[[2]int{row, col}] }

func (s *fakeSheet) IsMerged(row, col int) bool { return s.merged[[2]int{row, col}] }

func (s *fakeSheet) Value(cell string) string {
	if cell == "C2" {
		return s.header
	}
	return ""
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
