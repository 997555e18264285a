package timetable

import (
	"sort"
	"time"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// Weekdays lists the rendered weekdays in display order.
var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}

// Grid is the render-ready view of a set of occurrences over a window.
type Grid struct {
	WindowStart  time.Time
	WindowEnd    time.Time
	Buckets      map[time.Time]map[string][]models.Occurrence
	WeekdaySpans map[time.Weekday][]models.TimeSpan
}

// SnapWindow moves start back and end forward to the nearest Monday.
func SnapWindow(start, end time.Time) (time.Time, time.Time) {
	start = DateOnly(start)
	end = DateOnly(end)
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, -1)
	}
	for end.Weekday() != time.Monday {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// BuildGrid buckets occurrences by date and "HH:MM-HH:MM" key inside the
// snapped window and collects the distinct spans used on each weekday. Window
// membership is decided by the primary date only.
func BuildGrid(occurrences []models.Occurrence, windowStart, windowEnd time.Time) Grid {
	start, end := SnapWindow(windowStart, windowEnd)
	grid := Grid{
		WindowStart:  start,
		WindowEnd:    end,
		Buckets:      make(map[time.Time]map[string][]models.Occurrence),
		WeekdaySpans: make(map[time.Weekday][]models.TimeSpan, len(Weekdays)),
	}
	used := make(map[time.Weekday]map[models.TimeSpan]struct{}, len(Weekdays))
	for _, wd := range Weekdays {
		used[wd] = make(map[models.TimeSpan]struct{})
	}

	for _, occ := range occurrences {
		date := DateOnly(occ.Date)
		if date.Before(start) || date.After(end) {
			continue
		}
		day, ok := grid.Buckets[date]
		if !ok {
			day = make(map[string][]models.Occurrence)
			grid.Buckets[date] = day
		}
		key := occ.Span().String()
		day[key] = append(day[key], occ)

		spans, ok := used[date.Weekday()]
		if !ok {
			continue
		}
		spans[occ.Span()] = struct{}{}
		if secondary, joined := occ.SecondarySpan(); joined {
			spans[secondary] = struct{}{}
		}
	}

	for _, wd := range Weekdays {
		list := make([]models.TimeSpan, 0, len(used[wd]))
		for span := range used[wd] {
			list = append(list, span)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })
		grid.WeekdaySpans[wd] = list
	}
	return grid
}

// Dates returns the bucketed dates in ascending order.
func (g Grid) Dates() []time.Time {
	dates := make([]time.Time, 0, len(g.Buckets))
	for d := range g.Buckets {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Keys returns the span keys of one date in ascending order.
func (g Grid) Keys(date time.Time) []string {
	day := g.Buckets[DateOnly(date)]
	keys := make([]string, 0, len(day))
	for k := range day {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// At returns the occurrences bucketed under a date and span.
func (g Grid) At(date time.Time, span models.TimeSpan) []models.Occurrence {
	return g.Buckets[DateOnly(date)][span.String()]
}

