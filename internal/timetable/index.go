package timetable

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// SlotKey identifies one dated time slot.
type SlotKey struct {
	Date string
	Span models.TimeSpan
}

type slotEntry struct {
	date    time.Time
	records []models.RawLessonRecord
}

// OccurrenceIndex is a multimap from (date, slot) to the records occupying it.
// Iteration follows first-insertion order of the keys.
type OccurrenceIndex struct {
	entries *orderedmap.OrderedMap[SlotKey, *slotEntry]
}

// NewOccurrenceIndex returns an empty index.
func NewOccurrenceIndex() *OccurrenceIndex {
	return &OccurrenceIndex{entries: orderedmap.NewOrderedMap[SlotKey, *slotEntry]()}
}

// Add registers a record under the given date and slot.
func (i *OccurrenceIndex) Add(date time.Time, span models.TimeSpan, record models.RawLessonRecord) {
	key := SlotKey{Date: date.Format(time.DateOnly), Span: span}
	entry, ok := i.entries.Get(key)
	if !ok {
		entry = &slotEntry{date: DateOnly(date)}
		i.entries.Set(key, entry)
	}
	entry.records = append(entry.records, record)
}

// Get returns the records stored under the given date and slot.
func (i *OccurrenceIndex) Get(date time.Time, span models.TimeSpan) []models.RawLessonRecord {
	entry, ok := i.entries.Get(SlotKey{Date: date.Format(time.DateOnly), Span: span})
	if !ok {
		return nil
	}
	return entry.records
}

// Len returns the number of distinct keys.
func (i *OccurrenceIndex) Len() int {
	return i.entries.Len()
}

// Each visits keys in insertion order.
func (i *OccurrenceIndex) Each(fn func(date time.Time, span models.TimeSpan, records []models.RawLessonRecord)) {
	for el := i.entries.Front(); el != nil; el = el.Next() {
		fn(el.Value.date, el.Key.Span, el.Value.records)
	}
}
