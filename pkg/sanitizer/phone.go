package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Venue pages show numbers in local formats; the ledger stores E.164.
var supportedRegions = []string{"IN"}

// NormalizePhone parses a scraped contact number against each supported
// region and returns it in E.164. Unparseable input becomes "" rather
// than an error; a missing phone never blocks a booking record.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	for _, region := range supportedRegions {
		num, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return ""
}
