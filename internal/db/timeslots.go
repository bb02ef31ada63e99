package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reasy/internal/model"
	"reasy/internal/slots"
)

const slotColumns = `id, business_id, date, start_time, end_time, status`

// EnsureSlotsForDate materializes the generated slots of one business day.
// Rows that already exist are left untouched, so repeated and concurrent calls
// never duplicate a (business, date, start, end) key. Rows that fell off the
// grid after a change of working hours or duration are removed in the same
// transaction unless a reservation references them. It returns how many rows
// were inserted by this call.
func (db *DB) EnsureSlotsForDate(ctx context.Context, businessID int64, date, workingHours string, slotMinutes int) (int, error) {
	candidates, err := slots.Candidates(workingHours, slotMinutes)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	onGrid := make(map[[2]string]bool, len(candidates))
	for _, iv := range candidates {
		onGrid[[2]string{iv.Start.String(), iv.End.String()}] = true
	}

	inserted, pruned := 0, 0
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		n, err := pruneOffGrid(ctx, tx, businessID, date, onGrid)
		if err != nil {
			return err
		}
		pruned = n

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO time_slots (business_id, date, start_time, end_time, status)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare slot insert: %w", err)
		}
		defer stmt.Close()

		for _, iv := range candidates {
			res, err := stmt.ExecContext(ctx, businessID, date, iv.Start.String(), iv.End.String(), string(model.SlotAvailable))
			if err != nil {
				return fmt.Errorf("insert slot %s %s: %w", date, iv, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 || pruned > 0 {
		db.logger.Debug().
			Int64("business_id", businessID).
			Str("date", date).
			Int("inserted", inserted).
			Int("pruned", pruned).
			Msg("time slots materialized")
	}
	return inserted, nil
}

// pruneOffGrid deletes the day's slots whose interval is not in onGrid and
// that no reservation, active or declined, points at.
func pruneOffGrid(ctx context.Context, tx *sql.Tx, businessID int64, date string, onGrid map[[2]string]bool) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, start_time, end_time FROM time_slots
		WHERE business_id = ? AND date = ?
		  AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.time_slot_id = time_slots.id)`,
		businessID, date,
	)
	if err != nil {
		return 0, fmt.Errorf("list unreferenced slots: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var (
			id         int64
			start, end string
		)
		if err := rows.Scan(&id, &start, &end); err != nil {
			rows.Close()
			return 0, err
		}
		if !onGrid[[2]string{start, end}] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete off-grid slot %d: %w", id, err)
		}
	}
	return len(stale), nil
}

// SetSlotStatus updates the status of the slot with the given key.
func (db *DB) SetSlotStatus(ctx context.Context, businessID int64, date, start, end string, status model.SlotStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid slot status %q", status)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE time_slots SET status = ?
		WHERE business_id = ? AND date = ? AND start_time = ? AND end_time = ?`,
		string(status), businessID, date, start, end,
	)
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	return expectAffected(res)
}

// GetSlotsForBusinessAndDate returns the slots of one business day in start-time order.
func (db *DB) GetSlotsForBusinessAndDate(ctx context.Context, businessID int64, date string) ([]model.TimeSlot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE business_id = ? AND date = ? ORDER BY start_time, end_time`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetTimeSlot returns the slot or ErrNotFound.
func (db *DB) GetTimeSlot(ctx context.Context, id int64) (*model.TimeSlot, error) {
	return scanSlot(db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, id))
}

// GetTimeSlots returns the slots with the given ids keyed by id.
func (db *DB) GetTimeSlots(ctx context.Context, ids []int64) (map[int64]model.TimeSlot, error) {
	out := make(map[int64]model.TimeSlot, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		s, err := db.GetTimeSlot(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = *s
	}
	return out, nil
}

// HasSlotsForDate reports whether any slot exists for the business day.
func (db *DB) HasSlotsForDate(ctx context.Context, businessID int64, date string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM time_slots WHERE business_id = ? AND date = ?)`,
		businessID, date,
	).Scan(&exists)
	return exists, err
}

func scanSlot(row rowScanner) (*model.TimeSlot, error) {
	var s model.TimeSlot
	var status string
	if err := row.Scan(&s.ID, &s.BusinessID, &s.Date, &s.StartTime, &s.EndTime, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Status = model.SlotStatus(status)
	return &s, nil
}
