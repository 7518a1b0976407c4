package testutil

import (
	"time"

	"courtsync/pkg/model"
)

// LedgerEntryBuilder builds synthetic ledger entries for seeding. The default
// facility name is deliberately one no real venue uses, so seeded rows never
// collide with entries the live engine is tracking.
type LedgerEntryBuilder struct {
	entry model.LedgerEntry
}

func NewLedgerEntryBuilder() *LedgerEntryBuilder {
	now := time.Now().UTC().Truncate(time.Millisecond)
	start := now.Add(48 * time.Hour).Truncate(time.Hour)

	return &LedgerEntryBuilder{
		entry: model.LedgerEntry{
			Facility:      "Test Court Alpha",
			Sport:         "Badminton Synthetic",
			Court:         "Court 1",
			SlotStart:     start,
			SlotEnd:       start.Add(time.Hour),
			Status:        model.StatusAvailable,
			SourceOfTruth: model.SourceBoth,
			LastSyncedAt:  now,
			Version:       1,
			CreatedAt:     now,
		},
	}
}

func (b *LedgerEntryBuilder) WithFacility(facility string) *LedgerEntryBuilder {
	b.entry.Facility = facility
	return b
}

func (b *LedgerEntryBuilder) WithStatus(status model.SlotStatus) *LedgerEntryBuilder {
	b.entry.Status = status
	return b
}

func (b *LedgerEntryBuilder) WithSlot(start, end time.Time) *LedgerEntryBuilder {
	b.entry.SlotStart = start.UTC().Truncate(time.Millisecond)
	b.entry.SlotEnd = end.UTC().Truncate(time.Millisecond)
	return b
}

func (b *LedgerEntryBuilder) WithPastSlot() *LedgerEntryBuilder {
	start := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Hour)
	return b.WithSlot(start, start.Add(time.Hour))
}

func (b *LedgerEntryBuilder) Build() *model.LedgerEntry {
	entry := b.entry
	return &entry
}
