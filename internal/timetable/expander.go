package timetable

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/noah-isme/timetable-grid-api/internal/models"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

// CellReader gives the expander access to neighbouring cells.
type CellReader interface {
	CellText(row, col int) string
}

// Expander turns raw records at a sheet position into dated occurrences and
// registers them in an OccurrenceIndex. One Expander serves one sheet pass.
type Expander struct {
	cfg       GridConfig
	extractor *Extractor
	cells     CellReader
	index     *OccurrenceIndex

	seen        map[string]struct{}
	records     []models.RawLessonRecord
	occurrences []models.Occurrence
}

// NewExpander wires an expander to its sheet and index.
func NewExpander(cfg GridConfig, extractor *Extractor, cells CellReader, index *OccurrenceIndex) *Expander {
	return &Expander{
		cfg:       cfg,
		extractor: extractor,
		cells:     cells,
		index:     index,
		seen:      make(map[string]struct{}),
	}
}

// Expand materialises one record found at (row, col). A record equal to one
// already expanded in this pass is ignored. Merged cells repeat every week,
// single-row cells every other week starting with the first matching date.
func (e *Expander) Expand(record models.RawLessonRecord, row, col int, merged bool) error {
	key := record.Key()
	if _, ok := e.seen[key]; ok {
		return nil
	}
	e.seen[key] = struct{}{}

	cell := CellName(row, col)
	weekday, ok := e.cfg.Weekday(row)
	if !ok {
		return appErrors.Clone(appErrors.ErrCalendarRange, fmt.Sprintf("cell %s: row %d is outside the weekday rows", cell, row))
	}
	slot, ok := e.cfg.Slot(col)
	if !ok {
		return appErrors.Clone(appErrors.ErrCalendarRange, fmt.Sprintf("cell %s: column %d has no time slot", cell, col))
	}
	e.records = append(e.records, record)

	secondary, joined := e.joinedSlot(record, row, col)

	for _, dr := range record.DateRanges {
		start, err := e.parseDay(dr.Start)
		if err != nil {
			return appErrors.WrapAs(err, appErrors.ErrCalendarRange, fmt.Sprintf("cell %s: bad date %q", cell, dr.String()))
		}
		end, err := e.parseDay(dr.End)
		if err != nil {
			return appErrors.WrapAs(err, appErrors.ErrCalendarRange, fmt.Sprintf("cell %s: bad date %q", cell, dr.String()))
		}
		dates, err := weeklyDates(start, end, weekday, merged)
		if err != nil {
			return appErrors.WrapAs(err, appErrors.ErrCalendarRange, fmt.Sprintf("cell %s: cannot enumerate %q", cell, dr.String()))
		}
		for _, date := range dates {
			occ := models.Occurrence{
				Date:         date,
				TimeStart:    slot.Start,
				TimeEnd:      slot.End,
				Participants: record.Participants,
				Room:         record.Room,
				Kind:         record.Kind,
				Subject:      record.Subject,
				Joined:       joined,
			}
			e.index.Add(date, slot, record)
			if joined {
				occ.TimeStartSecondary = secondary.Start
				occ.TimeEndSecondary = secondary.End
				e.index.Add(date, secondary, record)
			}
			e.occurrences = append(e.occurrences, occ)
		}
	}
	return nil
}

// Records returns the distinct records expanded so far.
func (e *Expander) Records() []models.RawLessonRecord {
	return e.records
}

// Occurrences returns every occurrence produced so far in emission order.
func (e *Expander) Occurrences() []models.Occurrence {
	return e.occurrences
}

// joinedSlot reports whether the cell to the right holds the same record and,
// if so, returns that column's slot.
func (e *Expander) joinedSlot(record models.RawLessonRecord, row, col int) (models.TimeSpan, bool) {
	if col+1 > e.cfg.LastColumn {
		return models.TimeSpan{}, false
	}
	next, ok := e.cfg.Slot(col + 1)
	if !ok || e.cells == nil {
		return models.TimeSpan{}, false
	}
	text := e.cells.CellText(row, col+1)
	if text == "" {
		return models.TimeSpan{}, false
	}
	for _, candidate := range e.extractor.Extract(text) {
		if candidate.Equal(record) {
			return next, true
		}
	}
	return models.TimeSpan{}, false
}

func (e *Expander) parseDay(raw string) (time.Time, error) {
	return time.ParseInLocation("02.01.2006", fmt.Sprintf("%s.%d", raw, e.cfg.ReferenceYear), time.UTC)
}

// weeklyDates lists the dates in [start, end] falling on weekday, every week
// or every second week.
func weeklyDates(start, end time.Time, weekday time.Weekday, everyWeek bool) ([]time.Time, error) {
	first := start.AddDate(0, 0, (int(weekday)-int(start.Weekday())+7)%7)
	if first.After(end) {
		return nil, nil
	}
	interval := 2
	if everyWeek {
		interval = 1
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: interval,
		Dtstart:  first,
		Until:    end,
	})
	if err != nil {
		return nil, err
	}
	return rule.All(), nil
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
