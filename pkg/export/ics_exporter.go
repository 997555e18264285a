package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/noah-isme/timetable-grid-api/internal/models"
)

const productID = "-//timetable-grid-api//timetable//RU"

// ICSExporter renders occurrences as an iCalendar feed.
type ICSExporter struct {
	location *time.Location
	now      func() time.Time
}

// NewICSExporter builds an exporter placing slot times in loc.
func NewICSExporter(loc *time.Location) *ICSExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &ICSExporter{location: loc, now: time.Now}
}

// Render builds one VEVENT per occurrence. Event UIDs are derived from the
// occurrence content so re-exports of the same sheet update rather than
// duplicate calendar entries.
func (e *ICSExporter) Render(label string, occurrences []models.Occurrence) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if label != "" {
		cal.SetXWRCalName(label)
	}
	cal.SetXWRTimezone(e.location.String())

	stamp := e.now().UTC()
	for _, o := range occurrences {
		start, err := e.at(o.Date, o.TimeStart)
		if err != nil {
			return nil, err
		}
		endClock := o.TimeEnd
		if span, ok := o.SecondarySpan(); ok {
			endClock = span.End
		}
		end, err := e.at(o.Date, endClock)
		if err != nil {
			return nil, err
		}

		event := cal.AddEvent(EventUID(o))
		event.SetDtStampTime(stamp)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(fmt.Sprintf("%s (%s)", o.Subject, o.Kind))
		if o.Room != "" {
			event.SetLocation(o.Room)
		}
		if len(o.Participants) > 0 {
			event.SetDescription(strings.Join(o.Participants, ", "))
		}
	}
	return []byte(cal.Serialize()), nil
}

func (e *ICSExporter) at(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad slot time %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, e.location), nil
}

// EventUID is a name-based UUID over the date, slot and lesson.
func EventUID(o models.Occurrence) string {
	key := strings.Join([]string{
		o.Date.Format(time.DateOnly),
		o.TimeStart,
		o.Subject,
		string(o.Kind),
		o.Room,
		strings.Join(o.Participants, ","),
	}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@timetable"
}
