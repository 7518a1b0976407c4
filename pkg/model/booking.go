package model

import "time"

// BookingRequest asks the engine to place a booking on the primary platform
// using the live operator session. The slot may be addressed either by the
// opaque slot_ref handed out with slot listings, or by explicit facility and
// start fields.
type BookingRequest struct {
	SlotRef       string    `json:"slot_ref,omitempty" validate:"omitempty,max=512"`
	Facility      string    `json:"facility,omitempty" validate:"omitempty,min=2,max=120"`
	SlotStart     time.Time `json:"slot_start,omitempty"`
	SlotEnd       time.Time `json:"slot_end,omitempty"`
	CustomerName  string    `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerPhone string    `json:"customer_phone" validate:"required,min=8,max=20"`
	CustomerEmail string    `json:"customer_email,omitempty" validate:"omitempty,email"`
	Remarks       string    `json:"remarks,omitempty" validate:"omitempty,max=300"`
}

type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "PENDING"
	AttemptConfirmed AttemptStatus = "CONFIRMED"
	AttemptFailed    AttemptStatus = "FAILED"
)

// BookingAttempt records one externally driven booking, whatever its end
// state. Attempts are audit records; the slot's reconciled truth still comes
// from the next sync cycle.
type BookingAttempt struct {
	ID            string        `json:"id" bson:"_id"`
	Facility      string        `json:"facility" bson:"facility"`
	SlotStart     time.Time     `json:"slot_start" bson:"slot_start"`
	SlotEnd       time.Time     `json:"slot_end" bson:"slot_end"`
	CustomerName  string        `json:"customer_name" bson:"customer_name"`
	CustomerPhone string        `json:"customer_phone" bson:"customer_phone"`
	Status        AttemptStatus `json:"status" bson:"status"`
	ExternalRef   string        `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	Error         string        `json:"error,omitempty" bson:"error,omitempty"`
	RequestedAt   time.Time     `json:"requested_at" bson:"requested_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// SlotLock is an advisory lock preventing two concurrent booking attempts on
// the same slot. The _id is the slot key string; duplicate insert means the
// slot is already being booked.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
