package audit

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasy/internal/db"
	"reasy/internal/events"
	"reasy/internal/model"
)

func newTestService(t *testing.T) (*Service, *events.EventBus) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := db.NewDB(filepath.Join(t.TempDir(), "audit.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(store, Config{RetentionDays: 30}, &logger)
	bus := events.NewEventBus()
	svc.Attach(bus)
	return svc, bus
}

func publish(t *testing.T, bus *events.EventBus, eventType string, reservationID, businessID int64, status model.ReservationStatus) {
	t.Helper()
	require.NoError(t, bus.PublishJSON(eventType, events.ReservationPayload{
		ReservationID: reservationID,
		ClientID:      7,
		BusinessID:    businessID,
		TimeSlotID:    3,
		Date:          "2026-01-15",
		StartTime:     "09:00",
		Status:        string(status),
	}))
}

func TestRecordsReservationLifecycle(t *testing.T) {
	svc, bus := newTestService(t)
	ctx := context.Background()

	publish(t, bus, events.ReservationCreated, 1, 10, model.ReservationPending)
	publish(t, bus, events.ReservationAccepted, 1, 10, model.ReservationAccepted)
	publish(t, bus, events.ReservationCreated, 2, 10, model.ReservationPending)

	history, err := svc.History(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, events.ReservationCreated, history[0].Type)
	assert.Equal(t, model.ReservationPending, history[0].Status)
	assert.Equal(t, events.ReservationAccepted, history[1].Type)
	assert.Equal(t, int64(7), history[1].ClientID)
	assert.Contains(t, history[1].Payload, `"start_time":"09:00"`)
}

func TestHistoryIsScopedToBusiness(t *testing.T) {
	svc, bus := newTestService(t)
	publish(t, bus, events.ReservationCreated, 1, 10, model.ReservationPending)

	history, err := svc.History(context.Background(), 11, 1)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestRecordRejectsBadPayload(t *testing.T) {
	_, bus := newTestService(t)
	err := bus.Publish(events.Event{Type: events.ReservationDeclined, Payload: []byte("{broken")})
	require.Error(t, err)
}

func TestCleanupNow(t *testing.T) {
	svc, bus := newTestService(t)
	publish(t, bus, events.ReservationCreated, 1, 10, model.ReservationPending)

	deleted, err := svc.CleanupNow()
	require.NoError(t, err)
	assert.Zero(t, deleted)

	svc.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	deleted, err = svc.CleanupNow()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := svc.History(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStartStop(t *testing.T) {
	svc, _ := newTestService(t)
	svc.config.CleanupInterval = 10 * time.Millisecond

	svc.Start()
	svc.Start()
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
	svc.Stop()
}
