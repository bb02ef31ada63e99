package model

import "time"

// ReservationStatus is the approval state of a reservation request.
type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationAccepted ReservationStatus = "accepted"
	ReservationDeclined ReservationStatus = "declined"
)

// Active reports whether a reservation in this status blocks its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationAccepted
}

// Terminal reports whether no further transitions are allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationAccepted || s == ReservationDeclined
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
// Only pending -> accepted and pending -> declined are modeled.
func CanTransition(from, to ReservationStatus) bool {
	return from == ReservationPending && (to == ReservationAccepted || to == ReservationDeclined)
}

// Reservation is a client's request to occupy a time slot.
type Reservation struct {
	ID         int64             `json:"id"`
	ClientID   int64             `json:"client_id"`
	BusinessID int64             `json:"business_id"`
	TimeSlotID int64             `json:"time_slot_id"`
	Status     ReservationStatus `json:"status"`
	CreatedAt  string            `json:"created_at"` // YYYY-MM-DD
	UpdatedAt  time.Time         `json:"updated_at"`
}
