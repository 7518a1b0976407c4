package normalize

import (
	"testing"
	"time"

	"courtsync/pkg/config"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/timeslot"
)

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	cal, err := timeslot.NewCalendar("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewCalendar() error = %v", err)
	}
	cfg := &config.Config{
		Log:      logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"}),
		SlotGrid: time.Hour,
	}
	return NewNormalizer(cfg, cal)
}

var observedAt = time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

func playoRecord(cell model.RawPlayoCell) model.RawRecord {
	return model.RawRecord{Source: model.SourcePlayo, Playo: &cell}
}

func hudleRecord(slot model.RawHudleSlot) model.RawRecord {
	return model.RawRecord{Source: model.SourceHudle, Hudle: &slot}
}

func TestNormalizePlayoCell(t *testing.T) {
	n := testNormalizer(t)

	records := []model.RawRecord{
		playoRecord(model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "07:00",
			Sport:     "Badminton Synthetic",
			Court:     "Court 1",
			State:     "Available",
		}),
		playoRecord(model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "19:00",
			Sport:     "Snooker",
			Court:     "Table 2",
			State:     "Locked",
		}),
	}

	facts, dropped := n.Normalize(records, observedAt)
	if len(dropped) != 0 {
		t.Fatalf("unexpected drops: %v", dropped)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}

	first := facts[0]
	if first.Facility != "Badminton Synthetic Court 1" {
		t.Errorf("facility = %q", first.Facility)
	}
	// 07:00 IST is 01:30 UTC.
	wantStart := time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC)
	if !first.SlotStart.Equal(wantStart) {
		t.Errorf("slot start = %v, want %v", first.SlotStart, wantStart)
	}
	if !first.SlotEnd.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("slot end = %v", first.SlotEnd)
	}
	if first.Status != model.StatusAvailable {
		t.Errorf("status = %s", first.Status)
	}
	if !first.ObservedAt.Equal(observedAt) {
		t.Errorf("observed at = %v", first.ObservedAt)
	}

	// A venue-side lock is not bookable: the ledger sees it as taken.
	if facts[1].Status != model.StatusBooked {
		t.Errorf("locked cell status = %s, want %s", facts[1].Status, model.StatusBooked)
	}
	if facts[1].Facility != "Snooker Table 2" {
		t.Errorf("facility = %q", facts[1].Facility)
	}
}

func TestNormalizeHudleSlot(t *testing.T) {
	n := testNormalizer(t)

	records := []model.RawRecord{
		hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 07:00:00",
			EndTime:   "2026-01-10 08:30:00",
			SportID:   "2",
			GroupName: "Court 7",
			SlotID:    "101",
			IsBooked:  true,
		}),
		hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 09:00:00",
			SportID:   "2",
			GroupName: "Court 2",
		}),
		hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 10:00:00",
			SportID:   "8",
			GroupName: "Turf 1",
			IsLocked:  true,
		}),
	}

	facts, dropped := n.Normalize(records, observedAt)
	if len(dropped) != 0 {
		t.Fatalf("unexpected drops: %v", dropped)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}

	// Feed court 7 is the board's synthetic court 3.
	badminton := facts[0]
	if badminton.Facility != "Badminton Synthetic Court 3" {
		t.Errorf("facility = %q", badminton.Facility)
	}
	if badminton.ExternalID != "101" {
		t.Errorf("external id = %q", badminton.ExternalID)
	}
	wantStart := time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC)
	if !badminton.SlotStart.Equal(wantStart) {
		t.Errorf("slot start = %v", badminton.SlotStart)
	}
	// The explicit end time wins over the grid length.
	if !badminton.SlotEnd.Equal(wantStart.Add(90 * time.Minute)) {
		t.Errorf("slot end = %v", badminton.SlotEnd)
	}
	if badminton.Status != model.StatusBooked {
		t.Errorf("status = %s", badminton.Status)
	}

	premium := facts[1]
	if premium.Facility != "Badminton Premium Hybrid Court 2" {
		t.Errorf("facility = %q", premium.Facility)
	}
	if premium.Status != model.StatusAvailable {
		t.Errorf("status = %s", premium.Status)
	}
	// Missing end time falls back to one grid length.
	if !premium.SlotEnd.Equal(premium.SlotStart.Add(time.Hour)) {
		t.Errorf("slot end = %v", premium.SlotEnd)
	}

	football := facts[2]
	if football.Facility != "Football 7 a side Turf 1" {
		t.Errorf("facility = %q", football.Facility)
	}
	if football.Status != model.StatusBooked {
		t.Errorf("locked slot status = %s", football.Status)
	}
}

func TestNormalizeBilliardGroups(t *testing.T) {
	n := testNormalizer(t)

	slot := func(group, start string) model.RawRecord {
		return hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: start,
			SportID:   "5",
			GroupName: group,
		})
	}

	records := []model.RawRecord{
		slot("Snooker Table 1", "2026-01-10 10:00:00"),
		slot("Pool Table 2", "2026-01-10 10:00:00"),
		slot("Snooker Pro", "2026-01-10 10:00:00"),
		// The same unnumbered group must keep its assignment.
		slot("Snooker Pro", "2026-01-10 11:00:00"),
		slot("Pool Lounge", "2026-01-10 10:00:00"),
	}

	facts, dropped := n.Normalize(records, observedAt)
	if len(dropped) != 0 {
		t.Fatalf("unexpected drops: %v", dropped)
	}

	want := []string{
		"Snooker Table 1",
		"Pool 8 Ball Table 2",
		"Snooker Pro Table 1",
		"Snooker Pro Table 1",
		"Pool 8 Ball Table 1",
	}
	for i, fact := range facts {
		if fact.Facility != want[i] {
			t.Errorf("fact %d facility = %q, want %q", i, fact.Facility, want[i])
		}
	}
}

// Both platforms must name the same physical table identically, otherwise
// reconciliation can never join their facts.
func TestNormalizeCrossSourceFacilities(t *testing.T) {
	n := testNormalizer(t)

	records := []model.RawRecord{
		playoRecord(model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "10:00",
			Sport:     "Pool 8 Ball",
			Court:     "Table 1",
			State:     "Booked",
		}),
		hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 10:00:00",
			SportID:   "5",
			GroupName: "Pool Table 1",
			IsBooked:  true,
		}),
		playoRecord(model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "06:00",
			Sport:     "Badminton Synthetic",
			Court:     "Court 3",
			State:     "Available",
		}),
		hudleRecord(model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 06:00:00",
			SportID:   "2",
			GroupName: "Court 7",
		}),
	}

	facts, dropped := n.Normalize(records, observedAt)
	if len(dropped) != 0 {
		t.Fatalf("unexpected drops: %v", dropped)
	}
	if len(facts) != 4 {
		t.Fatalf("expected 4 facts, got %d", len(facts))
	}

	if facts[0].Key() != facts[1].Key() {
		t.Errorf("pool keys diverge: %v vs %v", facts[0].Key(), facts[1].Key())
	}
	if facts[2].Key() != facts[3].Key() {
		t.Errorf("badminton keys diverge: %v vs %v", facts[2].Key(), facts[3].Key())
	}
}

func TestNormalizeDropsBadRecords(t *testing.T) {
	n := testNormalizer(t)

	records := []model.RawRecord{
		playoRecord(model.RawPlayoCell{DateLabel: "not a date", StartTime: "07:00", Sport: "Snooker", Court: "Table 1", State: "Available"}),
		playoRecord(model.RawPlayoCell{DateLabel: "10 - Jan - 26", StartTime: "late", Sport: "Snooker", Court: "Table 1", State: "Available"}),
		playoRecord(model.RawPlayoCell{DateLabel: "10 - Jan - 26", StartTime: "07:00", Sport: "Snooker", Court: "Table 1", State: "Maintenance"}),
		hudleRecord(model.RawHudleSlot{Date: "2026-01-10", StartTime: "soon", SportID: "2", GroupName: "Court 1"}),
		hudleRecord(model.RawHudleSlot{Date: "2026-01-10", StartTime: "2026-01-10 10:00:00", SportID: "99", GroupName: "Court 1"}),
		{Source: model.SourcePlayo},
		playoRecord(model.RawPlayoCell{DateLabel: "10 - Jan - 26", StartTime: "07:00", Sport: "Snooker", Court: "Table 1", State: "Available"}),
	}

	facts, dropped := n.Normalize(records, observedAt)
	if len(facts) != 1 {
		t.Fatalf("expected the one good record to survive, got %d facts", len(facts))
	}
	if len(dropped) != 6 {
		t.Fatalf("expected 6 drops, got %d: %v", len(dropped), dropped)
	}
	for _, err := range dropped {
		nerr, ok := AsNormalizationError(err)
		if !ok {
			t.Errorf("drop is not a NormalizationError: %v", err)
			continue
		}
		if nerr.Source != model.SourcePlayo && nerr.Source != model.SourceHudle {
			t.Errorf("drop source = %q", nerr.Source)
		}
	}
}
