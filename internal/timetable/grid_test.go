package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

func occ(date time.Time, start, end, subject string) models.Occurrence {
	return models.Occurrence{Date: date, TimeStart: start, TimeEnd: end, Subject: subject, Kind: models.KindLecture}
}

func TestSnapWindowMovesToMondays(t *testing.T) {
	start, end := SnapWindow(day(2025, time.February, 12), day(2025, time.February, 20))
	require.Equal(t, day(2025, time.February, 10), start)
	require.Equal(t, day(2025, time.February, 24), end)

	start, end = SnapWindow(day(2025, time.February, 10), day(2025, time.February, 10))
	require.Equal(t, start, end)
}

func TestBuildGridDropsOccurrencesOutsideWindow(t *testing.T) {
	occs := []models.Occurrence{
		occ(day(2025, time.February, 3), "09:00", "10:30", "before"),
		occ(day(2025, time.February, 11), "09:00", "10:30", "inside"),
		occ(day(2025, time.February, 24), "13:00", "14:30", "edge"),
		occ(day(2025, time.March, 3), "09:00", "10:30", "after"),
	}
	grid := BuildGrid(occs, day(2025, time.February, 12), day(2025, time.February, 20))

	require.Equal(t, []time.Time{day(2025, time.February, 11), day(2025, time.February, 24)}, grid.Dates())
	inside := grid.At(day(2025, time.February, 11), models.TimeSpan{Start: "09:00", End: "10:30"})
	require.Len(t, inside, 1)
	require.Equal(t, "inside", inside[0].Subject)
	require.Empty(t, grid.At(day(2025, time.February, 3), models.TimeSpan{Start: "09:00", End: "10:30"}))
}

func TestBuildGridSortsSpansPerWeekday(t *testing.T) {
	monday := day(2025, time.February, 10)
	joined := occ(monday.AddDate(0, 0, 2), "09:00", "10:30", "lab")
	joined.Joined = true
	joined.TimeStartSecondary = "10:45"
	joined.TimeEndSecondary = "12:15"

	occs := []models.Occurrence{
		occ(monday, "16:30", "18:00", "a"),
		occ(monday, "09:00", "10:30", "b"),
		occ(monday.AddDate(0, 0, 7), "13:00", "14:30", "c"),
		occ(monday, "09:00", "10:30", "d"),
		joined,
	}
	grid := BuildGrid(occs, monday, monday.AddDate(0, 0, 13))

	require.Equal(t, []models.TimeSpan{
		{Start: "09:00", End: "10:30"},
		{Start: "13:00", End: "14:30"},
		{Start: "16:30", End: "18:00"},
	}, grid.WeekdaySpans[time.Monday])
	require.Equal(t, []models.TimeSpan{
		{Start: "09:00", End: "10:30"},
		{Start: "10:45", End: "12:15"},
	}, grid.WeekdaySpans[time.Wednesday])
	require.Empty(t, grid.WeekdaySpans[time.Saturday])

	require.Len(t, grid.At(monday, models.TimeSpan{Start: "09:00", End: "10:30"}), 2)
	require.Equal(t, []string{"09:00-10:30", "16:30-18:00"}, grid.Keys(monday))
}

func TestBuildGridIgnoresSundays(t *testing.T) {
	sunday := day(2025, time.February, 16)
	grid := BuildGrid([]models.Occurrence{occ(sunday, "09:00", "10:30", "x")}, sunday, sunday)
	require.Len(t, grid.Dates(), 1)
	for _, spans := range grid.WeekdaySpans {
		require.Empty(t, spans)
	}
}
