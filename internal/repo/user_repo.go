// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the credential-store functions used by
// HTTP Basic authentication.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-anime-catalog/internal/domain"
)

// GetUserByUsername fetches a user by login name, or ErrNotFound.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. passwordHash must already be a bcrypt hash.
// A duplicate username yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, name, username, passwordHash, authorities string) (*domain.User, error) {
	u := &domain.User{
		ID:          uuid.NewString(),
		Name:        name,
		Username:    username,
		Password:    passwordHash,
		Authorities: authorities,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// isUniqueViolation recognises UNIQUE failures; glebarez/sqlite often
// returns them as plain-text errors.
func isUniqueViolation(err error) bool {
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
