package db

import (
	"context"
	"errors"
	"fmt"

	"reasy/internal/config"
	"reasy/internal/model"
)

// PasswordHasher turns a plaintext catalog password into the stored hash.
type PasswordHasher func(password string) (string, error)

// SyncCatalog applies businesses.yaml to the database. Accounts are matched by
// username and created when missing; existing passwords are never rewritten.
// Each business account owns one business whose fields follow the catalog.
func (db *DB) SyncCatalog(ctx context.Context, cat *config.Catalog, hash PasswordHasher) error {
	if cat == nil {
		return fmt.Errorf("catalog is nil")
	}

	for _, entry := range cat.Businesses {
		user, err := db.ensureAccount(ctx, entry.Username, entry.Password, model.RoleBusiness, hash)
		if err != nil {
			return fmt.Errorf("sync business account %q: %w", entry.Username, err)
		}

		b := model.Business{
			UserID:              user.ID,
			Name:                entry.Name,
			Description:         entry.Description,
			Rating:              entry.Rating,
			WorkingHours:        entry.WorkingHours,
			ReservationDuration: entry.ReservationDuration,
			Category:            entry.Category,
			Address:             entry.Address,
			Phone:               entry.Phone,
			ImageURL:            entry.ImageURL,
		}

		owned, err := db.ListBusinessesByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list businesses of %q: %w", entry.Username, err)
		}
		if len(owned) == 0 {
			if err := db.CreateBusiness(ctx, &b); err != nil {
				return fmt.Errorf("create business %q: %w", entry.Name, err)
			}
			continue
		}
		b.ID = owned[0].ID
		if err := db.UpdateBusiness(ctx, &b); err != nil {
			return fmt.Errorf("update business %q: %w", entry.Name, err)
		}
	}

	for _, entry := range cat.Clients {
		if _, err := db.ensureAccount(ctx, entry.Username, entry.Password, model.RoleClient, hash); err != nil {
			return fmt.Errorf("sync client account %q: %w", entry.Username, err)
		}
	}
	return nil
}

func (db *DB) ensureAccount(ctx context.Context, username, password string, role model.Role, hash PasswordHasher) (*model.User, error) {
	user, err := db.GetUserByUsername(ctx, username)
	if err == nil {
		if user.Role != role {
			return nil, fmt.Errorf("existing account has role %s, catalog expects %s", user.Role, role)
		}
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hashed, err := hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user = &model.User{Username: username, PasswordHash: hashed, Role: role}
	if err := db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
