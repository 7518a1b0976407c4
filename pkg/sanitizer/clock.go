package sanitizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reClock = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)$`)

// NormalizeClock corrects a 24h clock string to zero-padded HH:MM, returning
// "" when the text is not a clock at all.
func NormalizeClock(s string) string {
	m := reClock.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}

	hour, _ := strconv.Atoi(m[1])
	if hour > 23 {
		return ""
	}

	return fmt.Sprintf("%02d:%s", hour, m[2])
}

// To24Hour converts a 12h clock with meridiem to HH:MM. The calendar grid
// prints ranges like "7:00 - 8:00 PM" where sometimes only the end carries
// the meridiem, so the caller decides which one applies.
func To24Hour(hour int, minute string, meridiem string) string {
	switch strings.ToUpper(strings.TrimSpace(meridiem)) {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%s", hour, minute)
}
