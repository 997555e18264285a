package timetable

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

func professorSheet() *fakeSheet {
	return newFakeSheet("Расписание преподавателя Петров П.П.").
		set(5, 2, "ауд.305(А) Алгебра ЛК И1Б-21Б-01 И1Б-22Б-02 10.02-24.03").
		merge(5, 2).
		set(6, 2, "ауд.305(А) Алгебра ЛК И1Б-21Б-01 И1Б-22Б-02 10.02-24.03").
		merge(6, 2).
		set(7, 4, "ауд.каф.(-) Программирование ЛР И1Б-21Б-01 11.02-25.03").
		set(7, 5, "ауд.каф.(-) Программирование ЛР И1Б-21Б-01 11.02-25.03").
		set(9, 3, "ауд.101 Физика ПЗ И1Б-22Б-02 12.02---консультация")
}

func TestDetectVariant(t *testing.T) {
	variant, label, err := DetectVariant("Расписание преподавателя Петров П.П.")
	require.NoError(t, err)
	require.Equal(t, models.VariantProfessor, variant)
	require.Equal(t, "Петров П.П.", label)

	variant, label, err = DetectVariant("Расписание занятий группы И1Б-21Б-01")
	require.NoError(t, err)
	require.Equal(t, models.VariantStudent, variant)
	require.Equal(t, "И1Б-21Б-01", label)

	_, _, err = DetectVariant("Ведомость")
	require.True(t, errors.Is(err, appErrors.ErrUnknownDocument))
}

func TestExtractProfessorSheet(t *testing.T) {
	result, err := Extract(professorSheet(), Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	require.Equal(t, "Петров П.П.", result.Label)
	require.Equal(t, models.VariantProfessor, result.Variant)
	require.Len(t, result.Records, 3)
	require.Equal(t, 1, result.ParseMisses)
	require.Empty(t, result.Conflicts)
	require.Empty(t, result.Report)

	counts := map[string]int{}
	for _, o := range result.Occurrences {
		counts[o.Subject]++
	}
	// Monday 10.02..24.03 every week, Tuesday 11.02..25.03 every other week.
	require.Equal(t, 7, counts["Алгебра"])
	require.Equal(t, 4, counts["Программирование"])
	require.Equal(t, 1, counts["Физика"])

	for _, o := range result.Occurrences {
		if o.Subject == "Программирование" {
			require.True(t, o.Joined)
			require.Equal(t, models.TimeSpan{Start: "13:00", End: "14:30"}, o.Span())
			span, ok := o.SecondarySpan()
			require.True(t, ok)
			require.Equal(t, models.TimeSpan{Start: "14:45", End: "16:15"}, span)
		}
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	first, err := Extract(professorSheet(), Options{})
	require.NoError(t, err)
	second, err := Extract(professorSheet(), Options{})
	require.NoError(t, err)
	require.Equal(t, first.Occurrences, second.Occurrences)
	require.Equal(t, first.Report, second.Report)
}

func TestExtractForcedVariant(t *testing.T) {
	sheet := newFakeSheet("Расписание занятий группы И1Б-21Б-01").
		set(13, 6, "ауд.Зал А(2) Физкультура ПЗ Иванов И.И. 14.02-28.02")

	result, err := Extract(sheet, Options{Variant: models.VariantStudent})
	require.NoError(t, err)
	require.Equal(t, "И1Б-21Б-01", result.Label)
	require.Len(t, result.Occurrences, 2)
	for _, o := range result.Occurrences {
		require.Equal(t, time.Friday, o.Date.Weekday())
		require.Equal(t, []string{"Иванов И.И."}, o.Participants)
	}
}

func TestExtractUnknownHeader(t *testing.T) {
	_, err := Extract(newFakeSheet("Ведомость"), Options{})
	require.True(t, errors.Is(err, appErrors.ErrUnknownDocument))
}

func TestExtractAbortsOnBadDate(t *testing.T) {
	sheet := professorSheet().set(13, 2, "ауд.101 Физика ПЗ И1Б-22Б-02 45.02")
	result, err := Extract(sheet, Options{})
	require.Nil(t, result)
	require.True(t, errors.Is(err, appErrors.ErrCalendarRange))
	require.Contains(t, err.Error(), "B13")
}

func TestExtractRejectsUnmappedRows(t *testing.T) {
	cfg := DefaultGridConfig()
	cfg.LastRow = 17
	sheet := professorSheet().set(17, 2, "ауд.101 Физика ПЗ И1Б-22Б-02 10.02")

	_, err := Extract(sheet, Options{Grid: cfg})
	require.True(t, errors.Is(err, appErrors.ErrCalendarRange))
}

func TestParseDateRange(t *testing.T) {
	now := day(2026, time.October, 16)

	start, end, err := ParseDateRange("01.09-31.12", now)
	require.NoError(t, err)
	require.Equal(t, day(2026, time.September, 1), start)
	require.Equal(t, day(2026, time.December, 31), end)

	for _, bad := range []string{"", "01.09", "1.9-2.10", "31.12-01.09", "aa.bb-cc.dd"} {
		_, _, err := ParseDateRange(bad, now)
		require.True(t, errors.Is(err, appErrors.ErrInvalidDateRange), bad)
	}
}

func TestLoadGridConfig(t *testing.T) {
	cfg, err := LoadGridConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultGridConfig(), cfg)

	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reference_year: 2026\nheader_cell: D3\n"), 0o600))
	cfg, err = LoadGridConfig(path)
	require.NoError(t, err)
	require.Equal(t, 2026, cfg.ReferenceYear)
	require.Equal(t, "D3", cfg.HeaderCell)
	require.Len(t, cfg.ColumnSlots, 7)

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("columns:\n  2: {start: \"10:30\", end: \"09:00\"}\n"), 0o600))
	_, err = LoadGridConfig(broken)
	require.Error(t, err)
}

func TestLoadGridConfigReplacesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	body := "last_column: 4\ncolumns:\n" +
		"  2: {start: \"08:00\", end: \"09:30\"}\n" +
		"  3: {start: \"09:40\", end: \"11:10\"}\n" +
		"  4: {start: \"11:20\", end: \"12:50\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadGridConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.ColumnSlots, 3)
	_, ok := cfg.Slot(5)
	require.False(t, ok)
	span, ok := cfg.Slot(2)
	require.True(t, ok)
	require.Equal(t, "08:00", span.Start)
	require.Len(t, cfg.RowWeekdays, 12)
	require.Equal(t, DefaultReferenceYear, cfg.ReferenceYear)
}

func TestLoadGridConfigNarrowsOmittedTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("last_column: 5\nlast_row: 10\n"), 0o600))

	cfg, err := LoadGridConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.ColumnSlots, 4)
	require.Len(t, cfg.RowWeekdays, 6)
	_, ok := cfg.Weekday(11)
	require.False(t, ok)
}

func TestGridConfigValidateRejectsEntriesOutsideBounds(t *testing.T) {
	cfg := DefaultGridConfig()
	cfg.LastColumn = 4
	require.ErrorContains(t, cfg.Validate(), "outside 2..4")

	cfg = DefaultGridConfig()
	cfg.FirstRow = 7
	require.ErrorContains(t, cfg.Validate(), "outside 7..16")

	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("last_column: 3\ncolumns:\n  4: {start: \"10:00\", end: \"11:00\"}\n"), 0o600))
	_, err := LoadGridConfig(path)
	require.Error(t, err)
}

func TestCellName(t *testing.T) {
	require.Equal(t, "B5", CellName(5, 2))
	require.Equal(t, "H16", CellName(16, 8))
	require.Equal(t, "AA1", CellName(1, 27))
}
