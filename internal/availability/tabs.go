package availability

import (
	"fmt"
	"sort"

	"reasy/internal/model"
)

// BusinessTab selects reservations on the business dashboard.
type BusinessTab string

const (
	BusinessPending  BusinessTab = "pending"
	BusinessAccepted BusinessTab = "accepted"
	BusinessPast     BusinessTab = "past"
)

// ClientTab selects reservations on the client's list.
type ClientTab string

const (
	ClientUpcoming ClientTab = "upcoming"
	ClientPast     ClientTab = "past"
	ClientDeclined ClientTab = "declined"
)

// ParseBusinessTab defaults to pending when s is empty.
func ParseBusinessTab(s string) (BusinessTab, error) {
	switch t := BusinessTab(s); t {
	case "":
		return BusinessPending, nil
	case BusinessPending, BusinessAccepted, BusinessPast:
		return t, nil
	}
	return "", fmt.Errorf("unknown business tab %q", s)
}

// ParseClientTab defaults to upcoming when s is empty.
func ParseClientTab(s string) (ClientTab, error) {
	switch t := ClientTab(s); t {
	case "":
		return ClientUpcoming, nil
	case ClientUpcoming, ClientPast, ClientDeclined:
		return t, nil
	}
	return "", fmt.Errorf("unknown client tab %q", s)
}

// Match compares the reservation date (YYYY-MM-DD) with today lexically.
func (t BusinessTab) Match(r model.Reservation, today string) bool {
	switch t {
	case BusinessPending:
		return r.Status == model.ReservationPending && r.CreatedAt >= today
	case BusinessAccepted:
		return r.Status == model.ReservationAccepted && r.CreatedAt >= today
	case BusinessPast:
		return r.CreatedAt < today
	}
	return false
}

func (t ClientTab) Match(r model.Reservation, today string) bool {
	switch t {
	case ClientUpcoming:
		return r.Status.Active() && r.CreatedAt >= today
	case ClientPast:
		return r.CreatedAt < today
	case ClientDeclined:
		return r.Status == model.ReservationDeclined
	}
	return false
}

// FilterBusiness keeps the reservations shown under tab.
func FilterBusiness(reservations []model.Reservation, tab BusinessTab, today string) []model.Reservation {
	var out []model.Reservation
	for _, r := range reservations {
		if tab.Match(r, today) {
			out = append(out, r)
		}
	}
	return out
}

// FilterClient keeps the reservations shown under tab.
func FilterClient(reservations []model.Reservation, tab ClientTab, today string) []model.Reservation {
	var out []model.Reservation
	for _, r := range reservations {
		if tab.Match(r, today) {
			out = append(out, r)
		}
	}
	return out
}

// Group is a run of items sharing one date.
type Group[T any] struct {
	Date  string `json:"date"`
	Items []T    `json:"items"`
}

// GroupByDate buckets items by dateOf and orders the groups newest first.
// Items keep their input order inside a group.
func GroupByDate[T any](items []T, dateOf func(T) string) []Group[T] {
	index := make(map[string]int)
	var groups []Group[T]
	for _, it := range items {
		d := dateOf(it)
		i, ok := index[d]
		if !ok {
			i = len(groups)
			index[d] = i
			groups = append(groups, Group[T]{Date: d})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Date > groups[b].Date })
	return groups
}

// Stats are the dashboard counters for reservations created today.
type Stats struct {
	Accepted int `json:"accepted"`
	Pending  int `json:"pending"`
	Declined int `json:"declined"`
}

// TodayStats counts today's reservations by status.
func TodayStats(reservations []model.Reservation, today string) Stats {
	var s Stats
	for _, r := range reservations {
		if r.CreatedAt != today {
			continue
		}
		switch r.Status {
		case model.ReservationAccepted:
			s.Accepted++
		case model.ReservationPending:
			s.Pending++
		case model.ReservationDeclined:
			s.Declined++
		}
	}
	return s
}
