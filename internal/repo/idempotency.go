// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores replay records for POST /anime requests
// that carried an Idempotency-Key.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-anime-catalog/internal/domain"
)

// ErrDuplicate indicates that a unique key (username, or an unexpired
// (username, key) idempotency record) already exists.
var ErrDuplicate = errors.New("duplicate")

// Replay is what a successful keyed POST leaves behind.
type Replay struct {
	Username string
	Key      string
	AnimeID  int64
	Status   int
}

// GetIdempotency returns the unexpired record for (username, key) at now,
// or ErrNotFound. Keys are compared after trimming.
func GetIdempotency(ctx context.Context, db *gorm.DB, username, key string, now time.Time) (*domain.Idempotency, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"username": username, "key": key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records r until now+ttl. An unexpired record for the
// same (username, key) wins and yields ErrDuplicate; an expired one is
// overwritten in place, so keys become reusable before the purge runs.
func SaveIdempotency(ctx context.Context, db *gorm.DB, r Replay, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Username:  r.Username,
		Key:       strings.TrimSpace(r.Key),
		AnimeID:   r.AnimeID,
		Status:    r.Status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if rec.Key == "" {
		return nil, errors.New("idempotency key is blank")
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "anime_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(rec)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose TTL elapsed at or before
// now and returns how many were removed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
