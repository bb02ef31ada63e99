package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reasy/internal/model"
)

const reservationColumns = `id, client_id, business_id, time_slot_id, status, created_at, updated_at`

// CreateReservation inserts r with status pending. It does not check slot
// availability; ReserveIfAvailable is the guarded path.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if r == nil {
		return fmt.Errorf("reservation is nil")
	}
	r.Status = model.ReservationPending
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().Format(model.DateLayout)
	}
	r.UpdatedAt = time.Now()

	res, err := db.ExecContext(ctx, `
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
	r.ID, err = res.LastInsertId()
	return err
}

// UpdateReservationStatus sets the status unconditionally.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, status model.ReservationStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("update reservation %d: %w", id, err)
	}
	return expectAffected(res)
}

// GetReservation returns the reservation or ErrNotFound.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	return scanReservation(db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

func (db *DB) ListReservationsByClient(ctx context.Context, clientID int64) ([]model.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE client_id = ? ORDER BY id`, clientID)
}

func (db *DB) ListReservationsByBusiness(ctx context.Context, businessID int64) ([]model.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE business_id = ? ORDER BY id`, businessID)
}

func (db *DB) ListReservationsBySlot(ctx context.Context, slotID int64) ([]model.Reservation, error) {
	return db.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE time_slot_id = ? ORDER BY id`, slotID)
}

func (db *DB) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	return db.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`)
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var status string
	err := row.Scan(&r.ID, &r.ClientID, &r.BusinessID, &r.TimeSlotID, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Status = model.ReservationStatus(status)
	return &r, nil
}
