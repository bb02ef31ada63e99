package model

import "time"

// SlotStatus is the stored status of a materialized time slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotReserved  SlotStatus = "reserved"
)

// Valid reports whether s is a known slot status.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotPending, SlotReserved:
		return true
	}
	return false
}

// Date and clock layouts used for slot keys and reservation dates.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// TimeSlot is one bookable interval of a business day.
// (BusinessID, Date, StartTime, EndTime) is unique.
type TimeSlot struct {
	ID         int64      `json:"id"`
	BusinessID int64      `json:"business_id"`
	Date       string     `json:"date"`       // YYYY-MM-DD
	StartTime  string     `json:"start_time"` // HH:MM
	EndTime    string     `json:"end_time"`   // HH:MM
	Status     SlotStatus `json:"status"`
}

// Start returns the slot start as a time in loc.
func (s *TimeSlot) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+s.StartTime, loc)
}

// SameInterval reports whether both slots describe the same business/day/interval key.
func (s *TimeSlot) SameInterval(other *TimeSlot) bool {
	return s.BusinessID == other.BusinessID &&
		s.Date == other.Date &&
		s.StartTime == other.StartTime &&
		s.EndTime == other.EndTime
}
