package timetable

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

// ParseDateRange reads a "DD.MM-DD.MM" render window. Both ends take the year of
// now; the end must not precede the start.
func ParseDateRange(text string, now time.Time) (time.Time, time.Time, error) {
	rawStart, rawEnd, ok := strings.Cut(strings.TrimSpace(text), "-")
	if !ok {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, fmt.Sprintf("date range %q must look like DD.MM-DD.MM", text))
	}
	start, err := parseWindowDay(rawStart, now.Year())
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.WrapAs(err, appErrors.ErrInvalidDateRange, fmt.Sprintf("bad range start %q", rawStart))
	}
	end, err := parseWindowDay(rawEnd, now.Year())
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.WrapAs(err, appErrors.ErrInvalidDateRange, fmt.Sprintf("bad range end %q", rawEnd))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidDateRange, fmt.Sprintf("date range %q ends before it starts", text))
	}
	return start, end, nil
}

func parseWindowDay(raw string, year int) (time.Time, error) {
	return time.ParseInLocation("02.01.2006", fmt.Sprintf("%s.%d", strings.TrimSpace(raw), year), time.UTC)
}
