package layout

import (
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/timetable"
)

// recordingSurface keeps every primitive it receives. Text measures half an
// em per rune.
type recordingSurface struct {
	width, height float64
	boxes         []Box
	labels        []Label
	measureScale  float64
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{measureScale: 0.5}
}

func (s *recordingSurface) SetPage(width, height float64) {
	s.width, s.height = width, height
}

func (s *recordingSurface) Rect(box Box) { s.boxes = append(s.boxes, box) }

func (s *recordingSurface) Text(label Label) { s.labels = append(s.labels, label) }

func (s *recordingSurface) MeasureTextWidth(content string, size float64) float64 {
	return float64(utf8.RuneCountInString(content)) * size * s.measureScale
}

func (s *recordingSurface) Save(string) error { return nil }

func (s *recordingSurface) texts() []string {
	out := make([]string, len(s.labels))
	for i, l := range s.labels {
		out[i] = l.Content
	}
	return out
}

func (s *recordingSurface) boxesWithOpacity(opacity float64) []Box {
	var out []Box
	for _, b := range s.boxes {
		if b.Opacity == opacity {
			out = append(out, b)
		}
	}
	return out
}

func halfEm(text string, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size * 0.5
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestShortenGroups(t *testing.T) {
	require.Equal(t, "И1Б-21Б-01, 22Б-02", ShortenGroups([]string{"И1Б-21Б-01", "И1Б-22Б-02"}))
	require.Equal(t, "Иванов И.И.", ShortenGroups([]string{"Иванов И.И."}))
	require.Equal(t, "А, Б", ShortenGroups([]string{"А", "Б"}))
	require.Equal(t, "", ShortenGroups(nil))
}

func TestExtractInitials(t *testing.T) {
	cases := []struct{ in, out string }{
		{"Теория вероятностей и математическая статистика", "ТВиМС"},
		{"Объектно-ориентированное программирование", "ООП"},
		{"Программирование", "Прогр"},
		{"Математика", "Математика"},
		{"Физика для инженеров", "ФДИ"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.out, ExtractInitials(tc.in), tc.in)
	}
	require.Equal(t, "Химия", DisplaySubject("Химия"))
	require.Equal(t, "ТВиМС", DisplaySubject("Теория вероятностей и математическая статистика"))
}

func TestColorIsDeterministic(t *testing.T) {
	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)

	first := Color("Алгебра", models.KindLecture, []string{"И1Б-21Б-01"})
	require.Equal(t, "#d533dd", first)
	require.Equal(t, first, Color("Алгебра", models.KindLecture, []string{"И1Б-21Б-01", "И1Б-22Б-02"}))
	require.Equal(t, "#462aa3", Color("Физика", models.KindPractice, nil))
	require.Regexp(t, hex, Color("ЯП", models.KindLab, []string{"Иванов И.И."}))
	require.NotEqual(t, first, Color("Алгебра", models.KindPractice, []string{"И1Б-21Б-01"}))
}

func TestFitTextPrefersLargestSizeThenFewestLines(t *testing.T) {
	elements := []string{"Алгебра", "(ЛК)", "И1Б-21Б-01", "305(А)"}

	lines, size, ok := FitText(elements, 400, 30, halfEm)
	require.True(t, ok)
	require.Equal(t, 16.0, size)
	require.Equal(t, []string{"Алгебра, (ЛК), И1Б-21Б-01, 305(А)"}, lines)

	lines, size, ok = FitText(elements, 200, 60, halfEm)
	require.True(t, ok)
	require.Equal(t, 16.0, size)
	require.Equal(t, []string{"Алгебра, (ЛК)", "И1Б-21Б-01, 305(А)"}, lines)

	lines, size, ok = FitText(elements, 100, 40, halfEm)
	require.True(t, ok)
	require.Equal(t, 10.0, size)
	require.Len(t, lines, 2)
}

func TestFitTextOverflow(t *testing.T) {
	_, _, ok := FitText([]string{"Алгебра", "(ЛК)"}, 2, 100, halfEm)
	require.False(t, ok)

	_, _, ok = FitText([]string{"Алгебра"}, 500, 1, halfEm)
	require.False(t, ok)

	_, _, ok = FitText(nil, 500, 500, halfEm)
	require.False(t, ok)
}

func TestBoxElements(t *testing.T) {
	short := BoxElements("Алгебра", "ЛК", "И1Б-21Б-01", "305(А)", halfEm)
	require.Equal(t, []string{"Алгебра", "(ЛК)", "И1Б-21Б-01", "305(А)"}, short)

	split := BoxElements("Алгебра", "ЛК", "И1Б-21Б-01, 22Б", "305(А)", halfEm)
	require.Equal(t, []string{"Алгебра", "(ЛК)", "И1Б-21Б-01, ", "22Б", "305(А)"}, split)

	long := BoxElements("Алгебра", "ЛК", "И1Б-21Б-01, 22Б-02, 23Б-03, 24Б-04", "305(А)", halfEm)
	require.Contains(t, strings.Join(long, "|"), "И1Б-21Б-01, ...")
	require.LessOrEqual(t, len(long), 4)

	noRoom := BoxElements("Алгебра", "ЛК", "Иванов И.И.", "", halfEm)
	require.Equal(t, []string{"Алгебра", "(ЛК)", "Иванов И.И."}, noRoom)
}

func TestWeekLabel(t *testing.T) {
	require.Equal(t, "1 В", WeekLabel(1))
	require.Equal(t, "2 Н", WeekLabel(2))
	require.Equal(t, "-1 В", WeekLabel(-1))
}

func TestColumnIndexWithinYear(t *testing.T) {
	start := date(2026, time.February, 9)
	require.Equal(t, 0, ColumnIndex(start, date(2026, time.February, 14)))
	require.Equal(t, 1, ColumnIndex(start, date(2026, time.February, 16)))
	require.Equal(t, 16, ColumnIndex(start, date(2026, time.June, 5)))
}

func TestColumnIndexAcrossFiftyTwoWeekYear(t *testing.T) {
	// ISO 2025 has 52 weeks; 22.12.2025 is in week 52.
	start := date(2025, time.December, 22)
	require.Equal(t, 1, ColumnIndex(start, date(2025, time.December, 29)))
	require.Equal(t, 1, ColumnIndex(start, date(2026, time.January, 1)))
	require.Equal(t, 2, ColumnIndex(start, date(2026, time.January, 5)))
	require.Equal(t, 3, ColumnIndex(start, date(2026, time.January, 17)))
}

func TestColumnIndexAcrossFiftyThreeWeekYear(t *testing.T) {
	// ISO 2026 has 53 weeks: 28.12.2026 is week 53, 04.01.2027 is week 1.
	start := date(2026, time.December, 21)
	_, week := date(2026, time.December, 28).ISOWeek()
	require.Equal(t, 53, week)

	require.Equal(t, 1, ColumnIndex(start, date(2026, time.December, 28)))
	require.Equal(t, 2, ColumnIndex(start, date(2027, time.January, 4)))
	require.Equal(t, 3, ColumnIndex(start, date(2027, time.January, 13)))
}

func lesson(d time.Time, slot models.TimeSpan, subject string, kind models.LessonKind) models.Occurrence {
	return models.Occurrence{
		Date:         d,
		TimeStart:    slot.Start,
		TimeEnd:      slot.End,
		Participants: []string{"И1Б-21Б-01"},
		Room:         "305(А)",
		Kind:         kind,
		Subject:      subject,
	}
}

var (
	firstSlot  = models.TimeSpan{Start: "09:00", End: "10:30"}
	secondSlot = models.TimeSpan{Start: "10:45", End: "12:15"}
)

func joinedLesson(d time.Time, subject string, kind models.LessonKind) models.Occurrence {
	occ := lesson(d, firstSlot, subject, kind)
	occ.Joined = true
	occ.TimeStartSecondary = secondSlot.Start
	occ.TimeEndSecondary = secondSlot.End
	return occ
}

func TestRenderDrawsHeaderAndLabels(t *testing.T) {
	occs := []models.Occurrence{
		lesson(date(2026, time.February, 9), firstSlot, "Алгебра", models.KindLecture),
		lesson(date(2026, time.February, 17), secondSlot, "Физика", models.KindPractice),
	}
	grid := timetable.BuildGrid(occs, date(2026, time.February, 9), date(2026, time.February, 20))
	surface := newRecordingSurface()

	stats, err := Render("Петров П.П.", grid, surface, false, DefaultConfig())
	require.NoError(t, err)

	require.Equal(t, 2, stats.Weeks)
	require.Equal(t, 2, stats.Boxes)
	require.Zero(t, stats.Overflows)
	require.Equal(t, DefaultConfig().PageWidth, surface.width)
	require.Equal(t, DefaultConfig().PageHeight(), surface.height)

	texts := surface.texts()
	require.Equal(t, "Петров П.П.", texts[0])
	require.Contains(t, texts, "1 В")
	require.Contains(t, texts, "2 Н")
	require.Contains(t, texts, "09.02")
	require.Contains(t, texts, "21.02")
	require.NotContains(t, texts, "23.02")
	require.Contains(t, texts, "Пн")
	require.Contains(t, texts, "Сб")
	require.Contains(t, texts, "09:00")
	require.Contains(t, texts, "12:15")

	lessonBoxes := surface.boxesWithOpacity(boxOpacity)
	require.Len(t, lessonBoxes, 2)
	require.Equal(t, Color("Алгебра", models.KindLecture, []string{"И1Б-21Б-01"}), lessonBoxes[0].Fill)
}

func TestRenderPlacesBoxesByColumnAndRow(t *testing.T) {
	cfg := DefaultConfig()
	occs := []models.Occurrence{
		lesson(date(2026, time.February, 9), firstSlot, "Алгебра", models.KindLecture),
		lesson(date(2026, time.February, 16), secondSlot, "Химия", models.KindLecture),
	}
	grid := timetable.BuildGrid(occs, date(2026, time.February, 9), date(2026, time.February, 20))
	surface := newRecordingSurface()
	engine := NewEngine(cfg, surface, "Петров П.П.", grid, false)
	cellWidth, cellHeight := engine.CellSize()

	x0, y0, ok := engine.Position(occs[0])
	require.True(t, ok)
	x1, y1, ok := engine.Position(occs[1])
	require.True(t, ok)

	require.Equal(t, cfg.MarginLeft+cfg.NameColumn, x0)
	require.InDelta(t, x0+cellWidth, x1, 1e-9)
	require.InDelta(t, y0+cellHeight, y1, 1e-9)

	_, _, ok = engine.Position(lesson(date(2026, time.February, 15), firstSlot, "Воскресенье", models.KindLecture))
	require.False(t, ok)
}

func TestRenderJoinedLessons(t *testing.T) {
	monday := date(2026, time.February, 9)
	occs := []models.Occurrence{
		joinedLesson(monday, "Химия", models.KindLab),
		joinedLesson(monday.AddDate(0, 0, 1), "Алгебра", models.KindLecture),
	}
	grid := timetable.BuildGrid(occs, monday, monday.AddDate(0, 0, 5))
	surface := newRecordingSurface()
	engine := NewEngine(DefaultConfig(), surface, "Петров П.П.", grid, false)
	_, cellHeight := engine.CellSize()

	engine.RenderOccurrences()
	boxes := surface.boxesWithOpacity(boxOpacity)
	require.Len(t, boxes, 3)

	require.Equal(t, 2*cellHeight, boxes[0].Height)
	require.Equal(t, cellHeight, boxes[1].Height)
	require.Equal(t, cellHeight, boxes[2].Height)
	require.Equal(t, boxes[1].Y+cellHeight, boxes[2].Y)
	require.Equal(t, boxes[1].Fill, boxes[2].Fill)
	require.Equal(t, 3, engine.Stats().Boxes)
}

func TestRenderNoColor(t *testing.T) {
	occs := []models.Occurrence{lesson(date(2026, time.February, 9), firstSlot, "Алгебра", models.KindLecture)}
	grid := timetable.BuildGrid(occs, date(2026, time.February, 9), date(2026, time.February, 9))
	surface := newRecordingSurface()

	stats, err := Render("Петров П.П.", grid, surface, true, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Weeks)
	require.Equal(t, 1, stats.Boxes)
	for _, box := range surface.boxesWithOpacity(boxOpacity) {
		require.Equal(t, White, box.Fill)
	}
}

func TestRenderCountsOverflows(t *testing.T) {
	occs := []models.Occurrence{lesson(date(2026, time.February, 9), firstSlot, "Алгебра", models.KindLecture)}
	grid := timetable.BuildGrid(occs, date(2026, time.February, 9), date(2026, time.February, 13))
	surface := newRecordingSurface()
	surface.measureScale = 1000

	stats, err := Render("Петров П.П.", grid, surface, false, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Boxes)
	require.Equal(t, 1, stats.Overflows)
	require.NotContains(t, surface.texts(), "Алгебра")
}

func TestRenderSkipsWindowEnd(t *testing.T) {
	// The snapped end Monday is outside the drawn weeks.
	occs := []models.Occurrence{
		lesson(date(2026, time.February, 9), firstSlot, "Алгебра", models.KindLecture),
		lesson(date(2026, time.February, 16), firstSlot, "Химия", models.KindLecture),
	}
	grid := timetable.BuildGrid(occs, date(2026, time.February, 9), date(2026, time.February, 14))
	surface := newRecordingSurface()

	stats, err := Render("Петров П.П.", grid, surface, false, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Weeks)
	require.Equal(t, 1, stats.Boxes)
}

func TestRenderRequiresWindow(t *testing.T) {
	_, err := Render("x", timetable.Grid{}, newRecordingSurface(), false, DefaultConfig())
	require.Error(t, err)
}

func TestHeaderFontShrinksLongLabels(t *testing.T) {
	grid := timetable.BuildGrid(nil, date(2026, time.February, 9), date(2026, time.February, 13))
	short := NewEngine(DefaultConfig(), newRecordingSurface(), "И1Б-21Б-01", grid, false)
	long := NewEngine(DefaultConfig(), newRecordingSurface(), "Константинопольский-Ибрагимов К.К.", grid, false)

	require.Equal(t, 18.0, short.HeaderFontSize())
	require.Less(t, long.HeaderFontSize(), 18.0)
	require.Less(t, halfEm("Константинопольский-Ибрагимов К.К.", long.HeaderFontSize())*1.1, 128*0.9)
}
