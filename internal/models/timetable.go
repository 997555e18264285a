package models

import (
	"slices"
	"strings"
	"time"
)

// LessonKind is the lesson type token found in a timetable cell.
type LessonKind string

const (
	KindLecture  LessonKind = "ЛК"
	KindPractice LessonKind = "ПЗ"
	KindLab      LessonKind = "ЛР"
)

// Valid reports whether the kind is one of the known tokens.
func (k LessonKind) Valid() bool {
	switch k {
	case KindLecture, KindPractice, KindLab:
		return true
	default:
		return false
	}
}

// DocumentVariant tells which side of the timetable a sheet describes.
type DocumentVariant string

const (
	// VariantProfessor sheets belong to a lecturer; participants are group codes.
	VariantProfessor DocumentVariant = "professor"
	// VariantStudent sheets belong to a group; the participant is the lecturer name.
	VariantStudent DocumentVariant = "student"
)

// DateRange is the raw "DD.MM" pair of a lesson window, as written in the sheet.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// String renders the range back to its sheet form.
func (r DateRange) String() string {
	return r.Start + "-" + r.End
}

// RawLessonRecord is one lesson segment parsed out of a cell. Empty fields mean the
// corresponding pattern did not match.
type RawLessonRecord struct {
	Room         string      `json:"room,omitempty"`
	Subject      string      `json:"subject,omitempty"`
	Kind         LessonKind  `json:"kind,omitempty"`
	Participants []string    `json:"participants"`
	DateRanges   []DateRange `json:"dateRanges"`
}

// Void reports whether the segment carried neither a room nor a lesson kind.
func (r RawLessonRecord) Void() bool {
	return r.Room == "" && r.Kind == ""
}

// Equal compares records by value.
func (r RawLessonRecord) Equal(other RawLessonRecord) bool {
	return r.Room == other.Room &&
		r.Subject == other.Subject &&
		r.Kind == other.Kind &&
		slices.Equal(r.Participants, other.Participants) &&
		slices.Equal(r.DateRanges, other.DateRanges)
}

// Key returns a string that is equal for equal records.
func (r RawLessonRecord) Key() string {
	ranges := make([]string, len(r.DateRanges))
	for i, dr := range r.DateRanges {
		ranges[i] = dr.String()
	}
	return strings.Join([]string{
		r.Room,
		r.Subject,
		string(r.Kind),
		strings.Join(r.Participants, "\x1e"),
		strings.Join(ranges, "\x1e"),
	}, "\x1f")
}

// PrimaryParticipant returns the first participant or an empty string.
func (r RawLessonRecord) PrimaryParticipant() string {
	if len(r.Participants) == 0 {
		return ""
	}
	return r.Participants[0]
}

// TimeSpan is a slot bound pair in HH:MM form.
type TimeSpan struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// String renders the span as "HH:MM-HH:MM".
func (s TimeSpan) String() string {
	return s.Start + "-" + s.End
}

// Less orders spans by start then end. HH:MM strings compare lexicographically.
func (s TimeSpan) Less(other TimeSpan) bool {
	if s.Start != other.Start {
		return s.Start < other.Start
	}
	return s.End < other.End
}

// Occurrence is one dated lesson instance.
type Occurrence struct {
	Date               time.Time  `json:"date"`
	TimeStart          string     `json:"timeStart"`
	TimeEnd            string     `json:"timeEnd"`
	Participants       []string   `json:"participants"`
	Room               string     `json:"room"`
	Kind               LessonKind `json:"kind"`
	Subject            string     `json:"subject"`
	Joined             bool       `json:"joined"`
	TimeStartSecondary string     `json:"timeStartSecondary,omitempty"`
	TimeEndSecondary   string     `json:"timeEndSecondary,omitempty"`
}

// Span returns the primary slot of the occurrence.
func (o Occurrence) Span() TimeSpan {
	return TimeSpan{Start: o.TimeStart, End: o.TimeEnd}
}

// SecondarySpan returns the second slot of a joined occurrence.
func (o Occurrence) SecondarySpan() (TimeSpan, bool) {
	if !o.Joined {
		return TimeSpan{}, false
	}
	return TimeSpan{Start: o.TimeStartSecondary, End: o.TimeEndSecondary}, true
}

// Conflict lists every record registered under one (date, slot) key.
type Conflict struct {
	Date    time.Time         `json:"date"`
	Span    TimeSpan          `json:"span"`
	Entries []RawLessonRecord `json:"entries"`
}
