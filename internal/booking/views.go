package booking

import (
	"context"
	"errors"

	"reasy/internal/availability"
	"reasy/internal/db"
	"reasy/internal/model"
)

// ReservationView is a reservation joined with its slot, business and client.
type ReservationView struct {
	model.Reservation
	SlotDate     string `json:"slot_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	BusinessName string `json:"business_name"`
	ClientName   string `json:"client_name"`
}

// ReservationGroup is a date bucket of reservation views.
type ReservationGroup = availability.Group[ReservationView]

// BusinessReservations returns the reservations of businessID under tab,
// grouped by creation date, newest first.
func (s *Service) BusinessReservations(ctx context.Context, businessID int64, tab availability.BusinessTab) ([]ReservationGroup, error) {
	rs, err := s.store.ListReservationsByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, availability.FilterBusiness(rs, tab, s.Today()))
	if err != nil {
		return nil, err
	}
	return groupViews(views), nil
}

// ClientReservations returns the reservations of clientID under tab,
// grouped by creation date, newest first.
func (s *Service) ClientReservations(ctx context.Context, clientID int64, tab availability.ClientTab) ([]ReservationGroup, error) {
	rs, err := s.store.ListReservationsByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	views, err := s.enrich(ctx, availability.FilterClient(rs, tab, s.Today()))
	if err != nil {
		return nil, err
	}
	return groupViews(views), nil
}

// AllBusinessReservations returns every reservation of businessID, unfiltered.
func (s *Service) AllBusinessReservations(ctx context.Context, businessID int64) ([]ReservationView, error) {
	rs, err := s.store.ListReservationsByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, rs)
}

func groupViews(views []ReservationView) []ReservationGroup {
	groups := availability.GroupByDate(views, func(v ReservationView) string { return v.CreatedAt })
	if groups == nil {
		return []ReservationGroup{}
	}
	return groups
}

func (s *Service) enrich(ctx context.Context, rs []model.Reservation) ([]ReservationView, error) {
	out := make([]ReservationView, 0, len(rs))
	if len(rs) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.TimeSlotID)
	}
	slots, err := s.store.GetTimeSlots(ctx, ids)
	if err != nil {
		return nil, err
	}

	businesses := make(map[int64]string)
	clients := make(map[int64]string)
	for _, r := range rs {
		v := ReservationView{Reservation: r}
		if slot, ok := slots[r.TimeSlotID]; ok {
			v.SlotDate = slot.Date
			v.StartTime = slot.StartTime
			v.EndTime = slot.EndTime
		}

		name, ok := businesses[r.BusinessID]
		if !ok {
			b, err := s.store.GetBusiness(ctx, r.BusinessID)
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				return nil, err
			}
			if b != nil {
				name = b.Name
			}
			businesses[r.BusinessID] = name
		}
		v.BusinessName = name

		name, ok = clients[r.ClientID]
		if !ok {
			u, err := s.store.GetUserByID(ctx, r.ClientID)
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				return nil, err
			}
			if u != nil {
				name = u.Username
			}
			clients[r.ClientID] = name
		}
		v.ClientName = name

		out = append(out, v)
	}
	return out, nil
}
