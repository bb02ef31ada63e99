// Package booking implements the booking use cases on top of the slot and
// reservation stores: listing a day's slots, booking one, and the business's
// accept/decline decisions.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reasy/internal/availability"
	"reasy/internal/db"
	"reasy/internal/events"
	"reasy/internal/metrics"
	"reasy/internal/model"
	"reasy/internal/slots"
)

var (
	ErrNoSlotSelected    = errors.New("please select a time slot")
	ErrSlotUnavailable   = db.ErrSlotUnavailable
	ErrInvalidTransition = errors.New("reservation is no longer pending")
	ErrForbidden         = errors.New("reservation belongs to another business")
	ErrPastDate          = errors.New("date is in the past")
	ErrInvalidDate       = errors.New("invalid date; expected YYYY-MM-DD")
)

// Store is the persistence the booking service needs. *db.DB implements it.
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	ListBusinessesByUser(ctx context.Context, userID int64) ([]model.Business, error)

	EnsureSlotsForDate(ctx context.Context, businessID int64, date, workingHours string, slotMinutes int) (int, error)
	GetSlotsForBusinessAndDate(ctx context.Context, businessID int64, date string) ([]model.TimeSlot, error)
	GetTimeSlot(ctx context.Context, id int64) (*model.TimeSlot, error)
	GetTimeSlots(ctx context.Context, ids []int64) (map[int64]model.TimeSlot, error)

	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListReservationsByBusiness(ctx context.Context, businessID int64) ([]model.Reservation, error)
	ListReservationsByClient(ctx context.Context, clientID int64) ([]model.Reservation, error)
	ListReservationsBySlot(ctx context.Context, slotID int64) ([]model.Reservation, error)

	ReserveIfAvailable(ctx context.Context, clientID, slotID int64, createdAt string) (*model.Reservation, error)
	DecideReservation(ctx context.Context, reservationID int64, status model.ReservationStatus) (*model.Reservation, error)
}

// Publisher receives reservation lifecycle events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Options tunes the service. Zero values pick defaults.
type Options struct {
	LockTTL           time.Duration
	VisibleDaysRadius int
	Location          *time.Location
	Now               func() time.Time
}

type Service struct {
	store   Store
	locker  Locker
	bus     Publisher
	lockTTL time.Duration
	radius  int
	loc     *time.Location
	now     func() time.Time
	logger  *zerolog.Logger
}

// NewService wires the booking use cases. locker and bus may be nil.
func NewService(store Store, locker Locker, bus Publisher, opts Options, logger *zerolog.Logger) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.VisibleDaysRadius <= 0 {
		opts.VisibleDaysRadius = 3
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:   store,
		locker:  locker,
		bus:     bus,
		lockTTL: opts.LockTTL,
		radius:  opts.VisibleDaysRadius,
		loc:     opts.Location,
		now:     opts.Now,
		logger:  logger,
	}
}

// Today returns the current calendar date in the service location.
func (s *Service) Today() string {
	return s.clock().Format(model.DateLayout)
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// DateOption is one entry of the date picker.
type DateOption struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// DaySlots is everything the client needs to pick a time on one date.
type DaySlots struct {
	Business  *model.Business         `json:"business"`
	Date      string                  `json:"date"`
	Label     string                  `json:"label"`
	Dates     []DateOption            `json:"dates"`
	Duration  string                  `json:"duration"`
	Slots     []availability.SlotView `json:"slots"`
	Available int                     `json:"available"`
}

// SlotsForDate materializes the business's slots for date when needed and
// resolves their availability from the reservations. An empty date means today.
func (s *Service) SlotsForDate(ctx context.Context, businessID int64, date string) (*DaySlots, error) {
	today := s.clock()
	if date == "" {
		date = today.Format(model.DateLayout)
	}
	day, err := time.ParseInLocation(model.DateLayout, date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if availability.IsPast(day, today) {
		return nil, ErrPastDate
	}

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	inserted, err := s.store.EnsureSlotsForDate(ctx, business.ID, date, business.WorkingHours, business.ReservationDuration)
	if err != nil {
		return nil, fmt.Errorf("materialize slots: %w", err)
	}
	if inserted > 0 {
		metrics.AddSlotsMaterialized(inserted)
		s.logger.Info().Int64("business_id", business.ID).Str("date", date).Int("slots", inserted).Msg("slots materialized")
	}

	stored, err := s.store.GetSlotsForBusinessAndDate(ctx, business.ID, date)
	if err != nil {
		return nil, err
	}
	reservations, err := s.store.ListReservationsByBusiness(ctx, business.ID)
	if err != nil {
		return nil, err
	}
	grid, err := slots.Candidates(business.WorkingHours, business.ReservationDuration)
	if err != nil {
		return nil, err
	}

	// Held slots from an older grid still block what they overlap but are not offered.
	views := availability.OnGrid(availability.SlotViews(stored, reservations), grid)
	out := &DaySlots{
		Business:  business,
		Date:      date,
		Label:     availability.DateLabel(day, today),
		Duration:  slots.FormatDuration(business.ReservationDuration),
		Slots:     views,
		Available: availability.AvailableCount(views),
	}
	for _, d := range availability.VisibleDates(day, today, s.radius) {
		key := d.Format(model.DateLayout)
		out.Dates = append(out.Dates, DateOption{
			Date:     key,
			Label:    availability.DateLabel(d, today),
			Selected: key == date,
		})
	}
	return out, nil
}

// Book reserves slotID for clientID. The availability check up front is only
// a fast path; the store transaction decides, and losers get ErrSlotUnavailable.
func (s *Service) Book(ctx context.Context, clientID, slotID int64) (*model.Reservation, error) {
	if slotID <= 0 {
		return nil, ErrNoSlotSelected
	}

	slot, err := s.store.GetTimeSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Date < s.Today() {
		return nil, ErrPastDate
	}

	onGrid, err := s.onCurrentGrid(ctx, slot)
	if err != nil {
		return nil, err
	}
	if !onGrid {
		metrics.IncReservationCreated("unavailable")
		return nil, ErrSlotUnavailable
	}

	existing, err := s.store.ListReservationsBySlot(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	if !availability.IsAvailable(*slot, existing) {
		metrics.IncReservationCreated("unavailable")
		return nil, ErrSlotUnavailable
	}

	key := fmt.Sprintf("slot:%d", slot.ID)
	locked, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock slot %d: %w", slot.ID, err)
	}
	if !locked {
		metrics.IncReservationCreated("contended")
		return nil, ErrSlotUnavailable
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn().Err(err).Int64("slot_id", slot.ID).Msg("release slot lock")
		}
	}()

	r, err := s.store.ReserveIfAvailable(ctx, clientID, slot.ID, s.Today())
	if err != nil {
		if errors.Is(err, db.ErrSlotUnavailable) {
			metrics.IncReservationCreated("unavailable")
			s.logger.Warn().Int64("client_id", clientID).Int64("slot_id", slot.ID).Msg("slot taken concurrently")
		}
		return nil, err
	}

	metrics.IncReservationCreated("created")
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("client_id", clientID).
		Int64("business_id", r.BusinessID).
		Str("date", slot.Date).
		Str("start", slot.StartTime).
		Msg("reservation created")
	s.publish(events.ReservationCreated, r, slot)
	return r, nil
}

// onCurrentGrid reports whether slot is still generated by its business's
// working hours and reservation duration.
func (s *Service) onCurrentGrid(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	business, err := s.store.GetBusiness(ctx, slot.BusinessID)
	if err != nil {
		return false, err
	}
	grid, err := slots.Candidates(business.WorkingHours, business.ReservationDuration)
	if err != nil {
		return false, err
	}
	for _, iv := range grid {
		if iv.Start.String() == slot.StartTime && iv.End.String() == slot.EndTime {
			return true, nil
		}
	}
	return false, nil
}

// Accept approves a pending reservation of a business owned by ownerID.
func (s *Service) Accept(ctx context.Context, ownerID, reservationID int64) (*model.Reservation, error) {
	return s.decide(ctx, ownerID, reservationID, model.ReservationAccepted)
}

// Decline rejects a pending reservation and frees its slot.
func (s *Service) Decline(ctx context.Context, ownerID, reservationID int64) (*model.Reservation, error) {
	return s.decide(ctx, ownerID, reservationID, model.ReservationDeclined)
}

func (s *Service) decide(ctx context.Context, ownerID, reservationID int64, status model.ReservationStatus) (*model.Reservation, error) {
	current, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	business, err := s.store.GetBusiness(ctx, current.BusinessID)
	if err != nil {
		return nil, err
	}
	if business.UserID != ownerID {
		return nil, ErrForbidden
	}

	r, err := s.store.DecideReservation(ctx, reservationID, status)
	if err != nil {
		if errors.Is(err, db.ErrNotPending) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, current.Status)
		}
		return nil, err
	}

	metrics.IncReservationDecision(string(status))
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("business_id", r.BusinessID).
		Str("status", string(r.Status)).
		Msg("reservation decided")

	eventType := events.ReservationAccepted
	if status == model.ReservationDeclined {
		eventType = events.ReservationDeclined
	}
	slot, err := s.store.GetTimeSlot(ctx, r.TimeSlotID)
	if err != nil {
		slot = &model.TimeSlot{ID: r.TimeSlotID}
	}
	s.publish(eventType, r, slot)
	return r, nil
}

func (s *Service) publish(eventType string, r *model.Reservation, slot *model.TimeSlot) {
	if s.bus == nil {
		return
	}
	payload := events.ReservationPayload{
		ReservationID: r.ID,
		ClientID:      r.ClientID,
		BusinessID:    r.BusinessID,
		TimeSlotID:    r.TimeSlotID,
		Date:          slot.Date,
		StartTime:     slot.StartTime,
		Status:        string(r.Status),
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Int64("reservation_id", r.ID).Msg("publish event")
	}
}

// BusinessFor returns the business owned by the given account.
func (s *Service) BusinessFor(ctx context.Context, ownerID int64) (*model.Business, error) {
	owned, err := s.store.ListBusinessesByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, db.ErrNotFound
	}
	return &owned[0], nil
}

// BusinessDashboard returns the counters of reservations created today.
func (s *Service) BusinessDashboard(ctx context.Context, businessID int64) (availability.Stats, error) {
	rs, err := s.store.ListReservationsByBusiness(ctx, businessID)
	if err != nil {
		return availability.Stats{}, err
	}
	return availability.TodayStats(rs, s.Today()), nil
}
