package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// OccurrenceRow is the flat CSV shape of one occurrence.
type OccurrenceRow struct {
	Date         string `csv:"date"`
	Weekday      string `csv:"weekday"`
	TimeStart    string `csv:"time_start"`
	TimeEnd      string `csv:"time_end"`
	Subject      string `csv:"subject"`
	Kind         string `csv:"kind"`
	Participants string `csv:"participants"`
	Room         string `csv:"room"`
	Joined       bool   `csv:"joined"`
}

// Rows flattens occurrences. A joined occurrence ends at its second slot.
func Rows(occurrences []models.Occurrence) []OccurrenceRow {
	rows := make([]OccurrenceRow, 0, len(occurrences))
	for _, o := range occurrences {
		end := o.TimeEnd
		if span, ok := o.SecondarySpan(); ok {
			end = span.End
		}
		rows = append(rows, OccurrenceRow{
			Date:         o.Date.Format(time.DateOnly),
			Weekday:      o.Date.Weekday().String(),
			TimeStart:    o.TimeStart,
			TimeEnd:      end,
			Subject:      o.Subject,
			Kind:         string(o.Kind),
			Participants: strings.Join(o.Participants, "; "),
			Room:         o.Room,
			Joined:       o.Joined,
		})
	}
	return rows
}

// CSVExporter renders occurrences into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes with a header row.
func (e *CSVExporter) Render(occurrences []models.Occurrence) ([]byte, error) {
	rows := Rows(occurrences)
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return data, nil
}
