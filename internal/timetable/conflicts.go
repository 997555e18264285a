package timetable

import (
	"strings"
	"time"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// FindConflicts returns every index key holding more than one record, in index
// insertion order. Callers wanting chronological order must sort.
func FindConflicts(index *OccurrenceIndex) []models.Conflict {
	conflicts := make([]models.Conflict, 0)
	index.Each(func(date time.Time, span models.TimeSpan, records []models.RawLessonRecord) {
		if len(records) < 2 {
			return
		}
		entries := make([]models.RawLessonRecord, len(records))
		copy(entries, records)
		conflicts = append(conflicts, models.Conflict{Date: date, Span: span, Entries: entries})
	})
	return conflicts
}

// FormatReport renders conflicts as one paragraph each.
func FormatReport(conflicts []models.Conflict, variant models.DocumentVariant) string {
	var b strings.Builder
	for _, c := range conflicts {
		b.WriteString(c.Date.Format("02.01"))
		b.WriteString(" с ")
		b.WriteString(c.Span.Start)
		b.WriteString(" до ")
		b.WriteString(c.Span.End)
		b.WriteString(" накладываются занятия:\n")
		for _, entry := range c.Entries {
			b.WriteString(entry.Subject)
			b.WriteString(" (")
			b.WriteString(string(entry.Kind))
			b.WriteString(")")
			if who := entry.PrimaryParticipant(); who != "" {
				if variant == models.VariantStudent {
					b.WriteString(" ")
				} else {
					b.WriteString(" у группы ")
				}
				b.WriteString(who)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// TruncateReport caps a report at limit characters, marking the cut with "...".
func TruncateReport(report string, limit int) string {
	runes := []rune(report)
	if limit <= 3 || len(runes) < limit {
		return report
	}
	return string(runes[:limit-3]) + "..."
}
