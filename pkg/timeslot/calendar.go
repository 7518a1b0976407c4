package timeslot

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultTimezone is where the facility physically operates.
	DefaultTimezone = "Asia/Kolkata"

	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	// NavDateLayout matches the booking board's date picker label.
	NavDateLayout = "02 - Jan - 06"

	// ClockLayout is a bare 24h wall clock reading.
	ClockLayout = "15:04"

	// TimestampLayout is the venue feed's slot start format.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Calendar converts between facility-local dates and UTC slot instants.
// All booking sources report wall-clock times in the facility's timezone;
// everything stored or compared downstream is UTC.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(tz string) (*Calendar, error) {
	if tz == "" {
		tz = DefaultTimezone
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	return &Calendar{loc: loc}, nil
}

// Location returns the facility's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Today returns the current facility-local date.
func (c *Calendar) Today() string {
	return time.Now().In(c.loc).Format(DateLayout)
}

// Window returns n consecutive dates starting from today, facility-local.
func (c *Calendar) Window(n int) []string {
	return c.WindowFrom(time.Now(), n)
}

// WindowFrom returns n consecutive dates starting from the given instant's
// facility-local day.
func (c *Calendar) WindowFrom(start time.Time, n int) []string {
	if n < 1 {
		n = 1
	}

	day := start.In(c.loc)
	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, day.AddDate(0, 0, i).Format(DateLayout))
	}
	return dates
}

// ParseDate parses a YYYY-MM-DD string as facility-local midnight.
func (c *Calendar) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", date, err)
	}
	return t, nil
}

// NavLabel renders a date the way the booking board's date picker displays it.
func (c *Calendar) NavLabel(date string) (string, error) {
	t, err := c.ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.Format(NavDateLayout), nil
}

// ParseNavLabel reads a date picker label back into wire form. The board is
// inconsistent about spacing around the dashes, so spaces are ignored.
func (c *Calendar) ParseNavLabel(label string) (string, error) {
	compact := strings.ReplaceAll(label, " ", "")
	t, err := time.ParseInLocation("02-Jan-06", compact, c.loc)
	if err != nil {
		return "", fmt.Errorf("parsing date label %q: %w", label, err)
	}
	return t.Format(DateLayout), nil
}

// SlotBounds resolves a facility-local date plus 24h start clock into the
// slot's UTC start and end. Slots starting late in the day may end past
// local midnight.
func (c *Calendar) SlotBounds(date, start string, grid time.Duration) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+start, c.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing slot start %q %q: %w", date, start, err)
	}

	startUTC := t.UTC()
	return startUTC, startUTC.Add(grid), nil
}

// ParseTimestamp parses a facility-local "YYYY-MM-DD HH:MM:SS" reading into UTC.
func (c *Calendar) ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, ts, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}
	return t.UTC(), nil
}

// DayBounds returns the UTC half-open interval covering a facility-local day.
func (c *Calendar) DayBounds(date string) (time.Time, time.Time, error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}
