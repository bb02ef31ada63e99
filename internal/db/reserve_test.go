package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasy/internal/model"
)

func setupSlot(t *testing.T, db *DB) (*model.Business, model.TimeSlot) {
	t.Helper()
	b := createBusiness(t, db, "10:00-19:00", 60)
	_, err := db.EnsureSlotsForDate(context.Background(), b.ID, testDate, b.WorkingHours, b.ReservationDuration)
	require.NoError(t, err)
	slots, err := db.GetSlotsForBusinessAndDate(context.Background(), b.ID, testDate)
	require.NoError(t, err)
	require.Len(t, slots, 9)
	return b, slots[0]
}

func TestReserveIfAvailable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	b, slot := setupSlot(t, db)
	alice := createUser(t, db, "alice", model.RoleClient)
	bob := createUser(t, db, "bob", model.RoleClient)

	r, err := db.ReserveIfAvailable(ctx, alice.ID, slot.ID, "2026-01-10")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, r.Status)
	assert.Equal(t, b.ID, r.BusinessID)
	assert.Equal(t, "2026-01-10", r.CreatedAt)

	got, err := db.GetTimeSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotReserved, got.Status)

	_, err = db.ReserveIfAvailable(ctx, bob.ID, slot.ID, "2026-01-10")
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = db.ReserveIfAvailable(ctx, bob.ID, 9999, "2026-01-10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReserveIfAvailable_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, slot := setupSlot(t, db)

	const clients = 10
	ids := make([]int64, clients)
	for i := range ids {
		ids[i] = createUser(t, db, "client"+string(rune('a'+i)), model.RoleClient).ID
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(clientID int64) {
			defer wg.Done()
			_, err := db.ReserveIfAvailable(ctx, clientID, slot.ID, testDate)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, clients-1, unavailable)

	rs, err := db.ListReservationsBySlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestDecideReservation_DeclineReopensSlot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, slot := setupSlot(t, db)
	alice := createUser(t, db, "alice", model.RoleClient)
	bob := createUser(t, db, "bob", model.RoleClient)

	first, err := db.ReserveIfAvailable(ctx, alice.ID, slot.ID, testDate)
	require.NoError(t, err)

	declined, err := db.DecideReservation(ctx, first.ID, model.ReservationDeclined)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationDeclined, declined.Status)

	got, err := db.GetTimeSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotAvailable, got.Status)

	second, err := db.ReserveIfAvailable(ctx, bob.ID, slot.ID, testDate)
	require.NoError(t, err)

	history, err := db.ListReservationsBySlot(ctx, slot.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, model.ReservationDeclined, history[0].Status)
	assert.Equal(t, second.ID, history[1].ID)
	assert.Equal(t, model.ReservationPending, history[1].Status)
}

func TestDecideReservation_Accept(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, slot := setupSlot(t, db)
	alice := createUser(t, db, "alice", model.RoleClient)

	r, err := db.ReserveIfAvailable(ctx, alice.ID, slot.ID, testDate)
	require.NoError(t, err)

	accepted, err := db.DecideReservation(ctx, r.ID, model.ReservationAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationAccepted, accepted.Status)

	got, err := db.GetTimeSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotReserved, got.Status)

	_, err = db.DecideReservation(ctx, r.ID, model.ReservationDeclined)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = db.DecideReservation(ctx, r.ID, model.ReservationPending)
	assert.Error(t, err)

	_, err = db.DecideReservation(ctx, 12345, model.ReservationAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateReservation_ActiveSlotIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	b, slot := setupSlot(t, db)
	alice := createUser(t, db, "alice", model.RoleClient)

	r := &model.Reservation{ClientID: alice.ID, BusinessID: b.ID, TimeSlotID: slot.ID, Status: model.ReservationAccepted}
	require.NoError(t, db.CreateReservation(ctx, r))
	assert.Equal(t, model.ReservationPending, r.Status, "status is forced to pending")

	dup := &model.Reservation{ClientID: alice.ID, BusinessID: b.ID, TimeSlotID: slot.ID}
	assert.ErrorIs(t, db.CreateReservation(ctx, dup), ErrSlotUnavailable)

	// the store itself does not validate transitions
	require.NoError(t, db.UpdateReservationStatus(ctx, r.ID, model.ReservationDeclined))
	require.NoError(t, db.UpdateReservationStatus(ctx, r.ID, model.ReservationAccepted))

	got, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationAccepted, got.Status)

	byClient, err := db.ListReservationsByClient(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, byClient, 1)
	byBusiness, err := db.ListReservationsByBusiness(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, byBusiness, 1)

	assert.ErrorIs(t, db.UpdateReservationStatus(ctx, 777, model.ReservationDeclined), ErrNotFound)
}
