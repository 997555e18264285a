package timetable

import (
	"regexp"
	"strings"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

// SegmentDelimiter separates lessons sharing one cell.
const SegmentDelimiter = "---"

var (
	professorRoomPattern = regexp.MustCompile(`ауд\.(каф\.\(-\)|\d+\([А-Яа-я\s]+\)|\d+\(?\d?\)?)`)
	studentRoomPattern   = regexp.MustCompile(`ауд\.(каф\.( *\d*)\(-\)|\d+\([А-Яа-я\s]+\)|Зал [А-Я]\(?\d*\)|\d+\(?\d*\)?)`)
	kindPattern          = regexp.MustCompile(`(ЛР|ЛК|ПЗ)`)
	groupPattern         = regexp.MustCompile(`[А-Я][\dА-Я][А-Я]-\d{2,3}[А-Яа-я]+-\d{2}`)
	professorPattern     = regexp.MustCompile(`[А-Я][а-я]+ [А-Я]\.+(?:[А-Я]\.)*`)
	datePattern          = regexp.MustCompile(`\d{2}\.\d{2}(?:-\d{2}\.\d{2})?`)
)

// Extractor turns cell text into raw lesson records. It holds no calendar state.
type Extractor struct {
	variant models.DocumentVariant
	room    *regexp.Regexp
}

// NewExtractor builds an extractor for the given sheet variant.
func NewExtractor(variant models.DocumentVariant) *Extractor {
	room := professorRoomPattern
	if variant == models.VariantStudent {
		room = studentRoomPattern
	}
	return &Extractor{variant: variant, room: room}
}

// Extract parses every segment of a cell in textual order. Segments that match
// nothing still produce an empty record. A segment holding only dates right
// after a record without dates supplies that record's date ranges.
func (e *Extractor) Extract(text string) []models.RawLessonRecord {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	segments := strings.Split(text, SegmentDelimiter)
	records := make([]models.RawLessonRecord, 0, len(segments))
	// absorbing is set while dates-only segments are being folded into the
	// record before them, so a run like "---09.02---16.02" keeps every window.
	absorbing := false
	for _, segment := range segments {
		record := e.extractSegment(segment)
		if n := len(records); n > 0 && datesOnly(record) && (absorbing || len(records[n-1].DateRanges) == 0) {
			records[n-1].DateRanges = append(records[n-1].DateRanges, record.DateRanges...)
			absorbing = true
			continue
		}
		records = append(records, record)
		absorbing = false
	}
	return records
}

func (e *Extractor) extractSegment(segment string) models.RawLessonRecord {
	record := models.RawLessonRecord{
		Participants: []string{},
		DateRanges:   []models.DateRange{},
	}

	roomStart, roomEnd := -1, -1
	if loc := e.room.FindStringSubmatchIndex(segment); loc != nil {
		roomStart, roomEnd = loc[2], loc[3]
		record.Room = segment[roomStart:roomEnd]
	}

	kindStart := -1
	if loc := kindPattern.FindStringIndex(segment); loc != nil {
		kindStart = loc[0]
		record.Kind = models.LessonKind(segment[loc[0]:loc[1]])
	}

	if record.Room != "" && record.Kind != "" && kindStart > roomEnd {
		record.Subject = trimSubject(segment[roomEnd:kindStart])
	}

	switch e.variant {
	case models.VariantStudent:
		if professor := professorPattern.FindString(segment); professor != "" {
			record.Participants = append(record.Participants, professor)
		}
		if raw := datePattern.FindString(segment); raw != "" {
			record.DateRanges = append(record.DateRanges, normalizeRange(raw))
		}
	default:
		record.Participants = append(record.Participants, groupPattern.FindAllString(segment, -1)...)
		for _, raw := range datePattern.FindAllString(segment, -1) {
			record.DateRanges = append(record.DateRanges, normalizeRange(raw))
		}
	}
	return record
}

func trimSubject(raw string) string {
	subject := strings.TrimSpace(raw)
	subject = strings.TrimSuffix(subject, "(")
	return strings.TrimSpace(subject)
}

// normalizeRange turns "DD.MM" into "DD.MM-DD.MM" and splits the pair.
func normalizeRange(raw string) models.DateRange {
	start, end, found := strings.Cut(raw, "-")
	if !found {
		end = start
	}
	return models.DateRange{Start: start, End: end}
}

func datesOnly(r models.RawLessonRecord) bool {
	return r.Room == "" && r.Kind == "" && len(r.Participants) == 0 && len(r.DateRanges) > 0
}
