package model

import (
	"fmt"
	"strings"
	"time"
)

// Business is a bookable venue owned by a business user.
type Business struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Rating              string    `json:"rating"`
	WorkingHours        string    `json:"working_hours"`   // "09:00-17:00"
	ReservationDuration int       `json:"reservation_time"` // minutes
	Category            string    `json:"category"`
	Address             string    `json:"address"`
	Phone               string    `json:"phone"`
	ImageURL            string    `json:"image_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks the fields the slot engine depends on.
// Working hours syntax is checked by the slots package.
func (b *Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("business name is required")
	}
	if b.ReservationDuration <= 0 {
		return fmt.Errorf("reservation duration must be positive, got %d", b.ReservationDuration)
	}
	if strings.TrimSpace(b.WorkingHours) == "" {
		return fmt.Errorf("working hours are required")
	}
	return nil
}
