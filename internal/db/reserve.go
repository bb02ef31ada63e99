package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reasy/internal/model"
)

// ReserveIfAvailable books a slot for a client in one write transaction:
// it verifies no active reservation holds the slot or any slot of the same
// business day whose interval overlaps it, marks the slot reserved and inserts
// a pending reservation dated createdAt. Competing calls for the same slot
// serialize on the database lock; all but one get ErrSlotUnavailable.
func (db *DB) ReserveIfAvailable(ctx context.Context, clientID, slotID int64, createdAt string) (*model.Reservation, error) {
	var out *model.Reservation
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		slot, err := scanSlot(tx.QueryRowContext(ctx,
			`SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, slotID))
		if err != nil {
			return err
		}

		var active int
		// HH:MM strings order the same way as the times they spell.
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM reservations r
			JOIN time_slots t ON t.id = r.time_slot_id
			WHERE t.business_id = ? AND t.date = ?
			  AND t.start_time < ? AND t.end_time > ?
			  AND r.status IN ('pending', 'accepted')`,
			slot.BusinessID, slot.Date, slot.EndTime, slot.StartTime,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count active reservations: %w", err)
		}
		if active > 0 {
			return ErrSlotUnavailable
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE time_slots SET status = ? WHERE id = ?`,
			string(model.SlotReserved), slotID,
		); err != nil {
			return fmt.Errorf("mark slot reserved: %w", err)
		}

		r := &model.Reservation{
			ClientID:   clientID,
			BusinessID: slot.BusinessID,
			TimeSlotID: slot.ID,
			Status:     model.ReservationPending,
			CreatedAt:  createdAt,
			UpdatedAt:  time.Now(),
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (client_id, business_id, time_slot_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ClientID, r.BusinessID, r.TimeSlotID, string(r.Status), r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("insert reservation: %w", err)
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecideReservation moves a pending reservation to accepted or declined and
// reconciles its slot status in the same transaction: declined reopens the
// slot, accepted keeps it reserved. Non-pending reservations yield ErrNotPending.
func (db *DB) DecideReservation(ctx context.Context, reservationID int64, status model.ReservationStatus) (*model.Reservation, error) {
	var slotStatus model.SlotStatus
	switch status {
	case model.ReservationAccepted:
		slotStatus = model.SlotReserved
	case model.ReservationDeclined:
		slotStatus = model.SlotAvailable
	default:
		return nil, fmt.Errorf("invalid decision %q", status)
	}

	var out *model.Reservation
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		r, err := scanReservation(tx.QueryRowContext(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, reservationID))
		if err != nil {
			return err
		}
		if !model.CanTransition(r.Status, status) {
			return fmt.Errorf("%w: %s", ErrNotPending, r.Status)
		}

		r.Status = status
		r.UpdatedAt = time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			string(r.Status), r.UpdatedAt, r.ID,
		); err != nil {
			return fmt.Errorf("update reservation %d: %w", r.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE time_slots SET status = ? WHERE id = ?`,
			string(slotStatus), r.TimeSlotID,
		); err != nil {
			return fmt.Errorf("reconcile slot %d: %w", r.TimeSlotID, err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
