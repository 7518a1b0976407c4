package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"courtsync/pkg/model"
	"courtsync/pkg/sanitizer"
)

// Venue-feed sport identifiers on the partner backend.
const (
	hudleSportBadminton = "2"
	hudleSportFootball  = "8"
	hudleSportCricket   = "24"
	hudleSportBilliard  = "5"
)

// canonicalStatus folds a scraped cell state into a ledger status. A
// venue-side "Locked" block is not bookable, so the ledger treats it the
// same as taken.
func canonicalStatus(raw string) (model.SlotStatus, bool) {
	switch sanitizer.NormalizeStatusWord(raw) {
	case "available":
		return model.StatusAvailable, true
	case "booked", "locked", "full":
		return model.StatusBooked, true
	case "cancelled":
		return model.StatusCancelled, true
	}
	return "", false
}

var groupNumber = regexp.MustCompile(`\d+`)

func firstNumber(s string) int {
	m := groupNumber.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

// courtCounters hands out positional court names for feed groups that carry
// no number of their own. A group keeps its first assignment for the whole
// batch so repeated slots of one group land on one facility.
type courtCounters struct {
	next     map[string]int
	assigned map[string]string
}

func newCourtCounters() *courtCounters {
	return &courtCounters{
		next:     make(map[string]int),
		assigned: make(map[string]string),
	}
}

func (c *courtCounters) court(date, sport, noun, group string) string {
	key := date + "|" + sport + "|" + group
	if name, ok := c.assigned[key]; ok {
		return name
	}
	seq := date + "|" + sport
	c.next[seq]++
	name := fmt.Sprintf("%s %d", noun, c.next[seq])
	c.assigned[key] = name
	return name
}

// mapHudleCourt translates a venue-feed group onto the booking board's sport
// and court naming, so facts from both platforms land on the same facility
// key. The feed splits badminton by court number and lumps all cue sports
// under one identifier, distinguished only by group name.
func mapHudleCourt(slot *model.RawHudleSlot, counters *courtCounters) (string, string, error) {
	group := sanitizer.NormalizeLabel(slot.GroupName)

	switch slot.SportID {
	case hudleSportBadminton:
		num := firstNumber(group)
		switch {
		case num >= 1 && num <= 4:
			return "Badminton Premium Hybrid", fmt.Sprintf("Court %d", num), nil
		case num >= 5 && num <= 8:
			// The feed numbers the synthetic courts 5 through 8; the board
			// counts them from 1.
			return "Badminton Synthetic", fmt.Sprintf("Court %d", num-4), nil
		default:
			if group == "" {
				return "", "", &NormalizationError{Source: model.SourceHudle, Reason: "badminton group has no name"}
			}
			return "Badminton Synthetic", group, nil
		}
	case hudleSportFootball:
		return "Football 7 a side", numberedCourt("Turf", group, slot.Date, "Football 7 a side", counters), nil
	case hudleSportCricket:
		return "Box Cricket 7 a side", numberedCourt("Turf", group, slot.Date, "Box Cricket 7 a side", counters), nil
	case hudleSportBilliard:
		lower := strings.ToLower(group)
		var sport string
		switch {
		case strings.Contains(lower, "pool"):
			sport = "Pool 8 Ball"
		case strings.Contains(lower, "pro"):
			sport = "Snooker Pro"
		default:
			sport = "Snooker"
		}
		return sport, numberedCourt("Table", group, slot.Date, sport, counters), nil
	}
	return "", "", &NormalizationError{Source: model.SourceHudle, Reason: fmt.Sprintf("unknown sport id %q", slot.SportID)}
}

// numberedCourt prefers the number written in the group name; unnumbered
// groups fall back to arrival order.
func numberedCourt(noun, group, date, sport string, counters *courtCounters) string {
	if num := firstNumber(group); num > 0 {
		return fmt.Sprintf("%s %d", noun, num)
	}
	return counters.court(date, sport, noun, group)
}
