package db

import (
	"context"
	"fmt"
	"time"

	"reasy/internal/model"
)

// ReservationEvent is one persisted lifecycle step of a reservation.
// Rows outlive the reservation they describe.
type ReservationEvent struct {
	ID            int64                   `json:"id"`
	Type          string                  `json:"type"`
	ReservationID int64                   `json:"reservation_id"`
	BusinessID    int64                   `json:"business_id"`
	ClientID      int64                   `json:"client_id"`
	Status        model.ReservationStatus `json:"status"`
	Payload       string                  `json:"payload"`
	CreatedAt     time.Time               `json:"created_at"`
}

// AppendReservationEvent inserts e and sets its ID.
func (db *DB) AppendReservationEvent(ctx context.Context, e *ReservationEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO reservation_events (type, reservation_id, business_id, client_id, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Type, e.ReservationID, e.BusinessID, e.ClientID, string(e.Status), e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation event: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// ListReservationEvents returns the events of one reservation of businessID, oldest first.
func (db *DB) ListReservationEvents(ctx context.Context, businessID, reservationID int64) ([]ReservationEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, type, reservation_id, business_id, client_id, status, payload, created_at
		FROM reservation_events
		WHERE business_id = ? AND reservation_id = ?
		ORDER BY id`,
		businessID, reservationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReservationEvent
	for rows.Next() {
		var e ReservationEvent
		var status string
		if err := rows.Scan(&e.ID, &e.Type, &e.ReservationID, &e.BusinessID, &e.ClientID, &status, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = model.ReservationStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteReservationEventsBefore removes events recorded before cutoff.
func (db *DB) DeleteReservationEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM reservation_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete reservation events: %w", err)
	}
	return res.RowsAffected()
}
