// Package normalize turns per-source raw records into timezone-consistent
// booking facts keyed so both platforms describe the same facilities.
package normalize

import (
	"fmt"
	"time"

	"courtsync/pkg/config"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/sanitizer"
	"courtsync/pkg/timeslot"
)

type Normalizer struct {
	cal  *timeslot.Calendar
	grid time.Duration
	log  *logger.Logger
}

func NewNormalizer(cfg *config.Config, cal *timeslot.Calendar) *Normalizer {
	return &Normalizer{
		cal:  cal,
		grid: cfg.SlotGrid,
		log:  cfg.Log,
	}
}

// Normalize converts a batch of raw records into facts. Records that cannot
// be normalized are dropped and reported, never fatal: one junk cell must
// not cost the cycle the rest of the board.
func (n *Normalizer) Normalize(records []model.RawRecord, observedAt time.Time) ([]model.BookingFact, []error) {
	facts := make([]model.BookingFact, 0, len(records))
	var dropped []error
	counters := newCourtCounters()

	for _, rec := range records {
		var (
			fact model.BookingFact
			err  error
		)
		switch {
		case rec.Source == model.SourcePlayo && rec.Playo != nil:
			fact, err = n.normalizePlayo(rec.Playo, observedAt)
		case rec.Source == model.SourceHudle && rec.Hudle != nil:
			fact, err = n.normalizeHudle(rec.Hudle, counters, observedAt)
		default:
			err = &NormalizationError{Source: rec.Source, Reason: "record carries no payload for its source"}
		}
		if err != nil {
			n.log.Warn("Dropping raw record", "source", rec.Source, "error", err)
			dropped = append(dropped, err)
			continue
		}
		facts = append(facts, fact)
	}
	return facts, dropped
}

func (n *Normalizer) normalizePlayo(cell *model.RawPlayoCell, observedAt time.Time) (model.BookingFact, error) {
	date, err := n.cal.ParseNavLabel(cell.DateLabel)
	if err != nil {
		return model.BookingFact{}, &NormalizationError{Source: model.SourcePlayo, Reason: fmt.Sprintf("unreadable date label %q", cell.DateLabel)}
	}

	clock := sanitizer.NormalizeClock(cell.StartTime)
	if clock == "" {
		return model.BookingFact{}, &NormalizationError{Source: model.SourcePlayo, Reason: fmt.Sprintf("unreadable start time %q", cell.StartTime)}
	}

	start, end, err := n.cal.SlotBounds(date, clock, n.grid)
	if err != nil {
		return model.BookingFact{}, &NormalizationError{Source: model.SourcePlayo, Reason: err.Error()}
	}

	sport := sanitizer.NormalizeLabel(cell.Sport)
	court := sanitizer.NormalizeLabel(cell.Court)
	if sport == "" || court == "" {
		return model.BookingFact{}, &NormalizationError{Source: model.SourcePlayo, Reason: "cell carries no sport or court"}
	}

	status, ok := canonicalStatus(cell.State)
	if !ok {
		return model.BookingFact{}, &NormalizationError{Source: model.SourcePlayo, Reason: fmt.Sprintf("unknown cell state %q", cell.State)}
	}

	return model.BookingFact{
		Source:     model.SourcePlayo,
		Facility:   sport + " " + court,
		Sport:      sport,
		Court:      court,
		SlotStart:  start,
		SlotEnd:    end,
		Status:     status,
		ObservedAt: observedAt,
	}, nil
}

func (n *Normalizer) normalizeHudle(slot *model.RawHudleSlot, counters *courtCounters, observedAt time.Time) (model.BookingFact, error) {
	sport, court, err := mapHudleCourt(slot, counters)
	if err != nil {
		return model.BookingFact{}, err
	}

	start, err := n.cal.ParseTimestamp(slot.StartTime)
	if err != nil {
		return model.BookingFact{}, &NormalizationError{Source: model.SourceHudle, Reason: fmt.Sprintf("unreadable start time %q", slot.StartTime)}
	}

	end := start.Add(n.grid)
	if slot.EndTime != "" {
		end, err = n.cal.ParseTimestamp(slot.EndTime)
		if err != nil {
			return model.BookingFact{}, &NormalizationError{Source: model.SourceHudle, Reason: fmt.Sprintf("unreadable end time %q", slot.EndTime)}
		}
	}
	if !end.After(start) {
		return model.BookingFact{}, &NormalizationError{Source: model.SourceHudle, Reason: "slot ends before it starts"}
	}

	status := model.StatusAvailable
	if slot.IsBooked || slot.IsLocked {
		status = model.StatusBooked
	}

	return model.BookingFact{
		Source:     model.SourceHudle,
		ExternalID: slot.SlotID,
		Facility:   sport + " " + court,
		Sport:      sport,
		Court:      court,
		SlotStart:  start,
		SlotEnd:    end,
		Status:     status,
		ObservedAt: observedAt,
	}, nil
}
