// Package audit keeps a persistent trail of reservation lifecycle events and
// prunes it on a schedule.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reasy/internal/db"
	"reasy/internal/events"
	"reasy/internal/model"
)

// Store persists the trail. *db.DB implements it.
type Store interface {
	AppendReservationEvent(ctx context.Context, e *db.ReservationEvent) error
	ListReservationEvents(ctx context.Context, businessID, reservationID int64) ([]db.ReservationEvent, error)
	DeleteReservationEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Subscriber is the part of the event bus the service listens on.
type Subscriber interface {
	Subscribe(eventType string, handler events.EventHandler)
}

// Config holds configuration for the audit service.
type Config struct {
	// RetentionDays is how many days of events to keep. Default: 365.
	RetentionDays int

	// CleanupInterval is the pause between retention runs. Default: 24h.
	CleanupInterval time.Duration
}

// Service records reservation events and runs retention cleanup.
type Service struct {
	store  Store
	config Config
	logger *zerolog.Logger
	now    func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewService(store Store, config Config, logger *zerolog.Logger) *Service {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 365
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 24 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Attach subscribes the recorder to every reservation event type.
func (s *Service) Attach(bus Subscriber) {
	for _, t := range []string{events.ReservationCreated, events.ReservationAccepted, events.ReservationDeclined} {
		bus.Subscribe(t, s.record)
	}
}

func (s *Service) record(event events.Event) error {
	var p events.ReservationPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	e := &db.ReservationEvent{
		Type:          event.Type,
		ReservationID: p.ReservationID,
		BusinessID:    p.BusinessID,
		ClientID:      p.ClientID,
		Status:        model.ReservationStatus(p.Status),
		Payload:       string(event.Payload),
		CreatedAt:     event.CreatedAt,
	}
	// Publishers run inside request handling; the write must not die with the request.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.AppendReservationEvent(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", event.Type, err)
	}
	return nil
}

// History returns the recorded events of one reservation of businessID.
func (s *Service) History(ctx context.Context, businessID, reservationID int64) ([]db.ReservationEvent, error) {
	out, err := s.store.ListReservationEvents(ctx, businessID, reservationID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []db.ReservationEvent{}
	}
	return out, nil
}

// Start begins the cleanup scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Int("retention_days", s.config.RetentionDays).Msg("audit service started")
}

// Stop gracefully stops the scheduler.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.CleanupNow(); err != nil {
				s.logger.Error().Err(err).Msg("failed to cleanup audit trail")
			}
		}
	}
}

// CleanupNow deletes events older than the retention window.
func (s *Service) CleanupNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	deleted, err := s.store.DeleteReservationEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().
			Int64("deleted_count", deleted).
			Int("retention_days", s.config.RetentionDays).
			Msg("cleaned up audit trail")
	}
	return deleted, nil
}
