package model

import (
	"fmt"
	"time"
)

type Source string

const (
	SourcePlayo Source = "PLAYO"
	SourceHudle Source = "HUDLE"
	SourceBoth  Source = "BOTH"
)

type SlotStatus string

const (
	StatusAvailable SlotStatus = "AVAILABLE"
	StatusBooked    SlotStatus = "BOOKED"
	StatusCancelled SlotStatus = "CANCELLED"
	StatusConflict  SlotStatus = "CONFLICT"
)

// BookingFact is a single source's claim about one slot, produced fresh every
// cycle and never mutated. Times are UTC so facts from both platforms group
// under the same key.
type BookingFact struct {
	Source     Source     `json:"source" bson:"source" validate:"required,oneof=PLAYO HUDLE"`
	ExternalID string     `json:"external_id,omitempty" bson:"external_id,omitempty"`
	Facility   string     `json:"facility" bson:"facility" validate:"required,min=2,max=120"`
	Sport      string     `json:"sport,omitempty" bson:"sport,omitempty"`
	Court      string     `json:"court,omitempty" bson:"court,omitempty"`
	SlotStart  time.Time  `json:"slot_start" bson:"slot_start" validate:"required"`
	SlotEnd    time.Time  `json:"slot_end" bson:"slot_end" validate:"required,gtfield=SlotStart"`
	Status     SlotStatus `json:"status" bson:"status" validate:"required,oneof=AVAILABLE BOOKED CANCELLED"`
	ObservedAt time.Time  `json:"observed_at" bson:"observed_at" validate:"required"`
}

func (f BookingFact) Key() SlotKey {
	return SlotKey{Facility: f.Facility, SlotStart: f.SlotStart, SlotEnd: f.SlotEnd}
}

// SlotKey uniquely identifies a bookable interval. Comparable, so it can be
// used as a map key during reconciliation; times must already be UTC.
type SlotKey struct {
	Facility  string    `json:"facility" bson:"facility"`
	SlotStart time.Time `json:"slot_start" bson:"slot_start"`
	SlotEnd   time.Time `json:"slot_end" bson:"slot_end"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%s|%s",
		k.Facility,
		k.SlotStart.UTC().Format(time.RFC3339),
		k.SlotEnd.UTC().Format(time.RFC3339),
	)
}
