package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reasy/internal/model"
)

// BusinessFilter narrows ListBusinesses. Zero fields match everything.
type BusinessFilter struct {
	Category string
	Query    string // case-insensitive substring of the name
}

const businessColumns = `id, user_id, name, description, rating, working_hours,
	reservation_duration, category, address, phone, image_url, created_at, updated_at`

// CreateBusiness inserts b and sets its ID.
func (db *DB) CreateBusiness(ctx context.Context, b *model.Business) error {
	if b == nil {
		return fmt.Errorf("business is nil")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now

	res, err := db.ExecContext(ctx, `
		INSERT INTO businesses (
			user_id, name, description, rating, working_hours, reservation_duration,
			category, address, phone, image_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Name, b.Description, b.Rating, b.WorkingHours, b.ReservationDuration,
		b.Category, b.Address, b.Phone, b.ImageURL, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// UpdateBusiness overwrites the editable fields of an existing business.
func (db *DB) UpdateBusiness(ctx context.Context, b *model.Business) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()
	res, err := db.ExecContext(ctx, `
		UPDATE businesses SET
			name = ?, description = ?, rating = ?, working_hours = ?, reservation_duration = ?,
			category = ?, address = ?, phone = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.Description, b.Rating, b.WorkingHours, b.ReservationDuration,
		b.Category, b.Address, b.Phone, b.ImageURL, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update business %d: %w", b.ID, err)
	}
	return expectAffected(res)
}

// GetBusiness returns the business or ErrNotFound.
func (db *DB) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	return scanBusiness(db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id))
}

// ListBusinessesByUser returns the businesses owned by a user.
func (db *DB) ListBusinessesByUser(ctx context.Context, userID int64) ([]model.Business, error) {
	return db.queryBusinesses(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE user_id = ? ORDER BY id`, userID)
}

// ListBusinesses returns businesses ordered by category then name.
func (db *DB) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q)+"%")
	}

	query := `SELECT ` + businessColumns + ` FROM businesses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category, name"
	return db.queryBusinesses(ctx, query, args...)
}

// ListCategories returns the distinct business categories in alphabetical order.
func (db *DB) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT category FROM businesses ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteBusiness removes a business; its slots and reservations cascade.
func (db *DB) DeleteBusiness(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM businesses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (db *DB) queryBusinesses(ctx context.Context, query string, args ...any) ([]model.Business, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBusiness(row rowScanner) (*model.Business, error) {
	var b model.Business
	err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &b.Description, &b.Rating, &b.WorkingHours,
		&b.ReservationDuration, &b.Category, &b.Address, &b.Phone, &b.ImageURL,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}
