package model

// RawPlayoCell is one calendar-grid cell as read off the rendered board:
// untranslated labels, clock text and the board's own date caption.
type RawPlayoCell struct {
	DateLabel string `json:"date_label"`
	StartTime string `json:"start_time"`
	Sport     string `json:"sport"`
	Court     string `json:"court"`
	State     string `json:"state"`
}

// RawHudleSlot is one slot out of an intercepted partner-API payload, kept in
// the wire shape the backend uses.
type RawHudleSlot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	SportID   string `json:"sport_id"`
	GroupName string `json:"group_name"`
	SlotID    string `json:"slot_id,omitempty"`
	IsBooked  bool   `json:"is_booked"`
	IsLocked  bool   `json:"is_locked"`
}

// RawRecord is the extractor output handed to the normalizer: exactly one of
// the per-source payloads is set, matching Source.
type RawRecord struct {
	Source Source        `json:"source"`
	Playo  *RawPlayoCell `json:"playo,omitempty"`
	Hudle  *RawHudleSlot `json:"hudle,omitempty"`
}
