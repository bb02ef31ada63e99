// Package availability derives slot bookability and reservation views from
// stored slots and reservations. Nothing here touches the datastore; every
// answer is recomputed from the rows passed in.
package availability

import (
	"reasy/internal/model"
	"reasy/internal/slots"
)

// IsAvailable reports whether slot can be booked given the reservations of
// its business: true when no reservation holding the slot is still active.
// Declined reservations stay in history and never block the slot.
func IsAvailable(slot model.TimeSlot, reservations []model.Reservation) bool {
	_, blocked := ActiveReservation(slot.ID, reservations)
	return !blocked
}

// ActiveReservation returns the pending or accepted reservation on slotID, if any.
func ActiveReservation(slotID int64, reservations []model.Reservation) (model.Reservation, bool) {
	for _, r := range reservations {
		if r.TimeSlotID == slotID && r.Status.Active() {
			return r, true
		}
	}
	return model.Reservation{}, false
}

// SlotView is a slot as shown to a client picking a time.
type SlotView struct {
	ID        int64            `json:"id"`
	Date      string           `json:"date"`
	StartTime string           `json:"start_time"`
	EndTime   string           `json:"end_time"`
	Status    model.SlotStatus `json:"status"`
	Available bool             `json:"available"`
}

// SlotViews projects slots into views in the given order. The displayed
// status comes from the blocking reservation, not from the stored slot status.
// A slot is also blocked by an active reservation on another slot of the same
// day whose interval overlaps it, which happens after the grid changed.
func SlotViews(stored []model.TimeSlot, reservations []model.Reservation) []SlotView {
	type hold struct {
		slot model.TimeSlot
		res  model.Reservation
	}
	var held []hold
	for _, s := range stored {
		if r, ok := ActiveReservation(s.ID, reservations); ok {
			held = append(held, hold{slot: s, res: r})
		}
	}

	out := make([]SlotView, 0, len(stored))
	for _, s := range stored {
		v := SlotView{
			ID:        s.ID,
			Date:      s.Date,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Status:    model.SlotAvailable,
			Available: true,
		}
		for _, h := range held {
			if h.slot.ID != s.ID && !Overlaps(h.slot, s) {
				continue
			}
			v.Available = false
			v.Status = model.SlotReserved
			if h.res.Status == model.ReservationPending {
				v.Status = model.SlotPending
			}
			if h.slot.ID == s.ID {
				break
			}
		}
		out = append(out, v)
	}
	return out
}

// Overlaps reports whether two slots of the same date share any time.
// Touching slots, where one ends as the other starts, do not overlap.
func Overlaps(a, b model.TimeSlot) bool {
	return a.Date == b.Date && a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

// OnGrid keeps the views whose start and end match one of the given
// intervals, in their original order.
func OnGrid(views []SlotView, grid []slots.Interval) []SlotView {
	keep := make(map[[2]string]bool, len(grid))
	for _, iv := range grid {
		keep[[2]string{iv.Start.String(), iv.End.String()}] = true
	}
	out := make([]SlotView, 0, len(views))
	for _, v := range views {
		if keep[[2]string{v.StartTime, v.EndTime}] {
			out = append(out, v)
		}
	}
	return out
}

// AvailableCount returns how many views are bookable.
func AvailableCount(views []SlotView) int {
	n := 0
	for _, v := range views {
		if v.Available {
			n++
		}
	}
	return n
}
