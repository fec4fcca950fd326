// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Anime model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They hold
// no business logic: existence checks and error translation belong to
// services.AnimeService.
//
// Error semantics:
//   - When an anime is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-anime-catalog/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAnime inserts a new Anime row. The id is assigned by SQLite.
func CreateAnime(ctx context.Context, db *gorm.DB, name string) (*domain.Anime, error) {
	a := &domain.Anime{Name: name}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateAnimeName renames the row with the given id. It never inserts:
// ErrNotFound is returned when no row matched.
func UpdateAnimeName(ctx context.Context, db *gorm.DB, id int64, name string) error {
	res := db.WithContext(ctx).
		Model(&domain.Anime{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAnime fetches a single anime by id, or ErrNotFound if missing.
func GetAnime(ctx context.Context, db *gorm.DB, id int64) (*domain.Anime, error) {
	var a domain.Anime
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAnimeByName returns every anime whose name contains name
// (case-sensitive), in insertion order. No match yields an empty slice.
func FindAnimeByName(ctx context.Context, db *gorm.DB, name string) ([]domain.Anime, error) {
	out := []domain.Anime{}
	err := db.WithContext(ctx).
		Where("instr(name, ?) > 0", name).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListAnime returns the whole catalog in insertion order.
func ListAnime(ctx context.Context, db *gorm.DB) ([]domain.Anime, error) {
	out := []domain.Anime{}
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// CountAnime returns the number of catalog rows.
func CountAnime(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Anime{}).Count(&total).Error
	return total, err
}

// ListAnimePage returns one page of the catalog ordered per req.
// Use CountAnime to obtain the total for pagination metadata.
func ListAnimePage(ctx context.Context, db *gorm.DB, req domain.PageRequest) ([]domain.Anime, error) {
	out := []domain.Anime{}
	err := db.WithContext(ctx).
		Order(orderClause(req)).
		Offset(req.Offset()).
		Limit(req.Size).
		Find(&out).Error
	return out, err
}

// DeleteAnime removes the anime with id. It returns ErrNotFound when no row
// was affected.
func DeleteAnime(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Delete(&domain.Anime{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AnimeStats returns the row count and the greatest id, used for weak ETags.
// Both are 0 for an empty catalog.
func AnimeStats(ctx context.Context, db *gorm.DB) (count, maxID int64, err error) {
	if err = db.WithContext(ctx).Model(&domain.Anime{}).Count(&count).Error; err != nil || count == 0 {
		return 0, 0, err
	}
	var row struct{ ID int64 }
	err = db.WithContext(ctx).Model(&domain.Anime{}).
		Select("id").Order("id desc").Limit(1).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}

// orderClause maps a PageRequest onto a whitelisted ORDER BY expression.
func orderClause(req domain.PageRequest) string {
	dir := "asc"
	if req.SortDesc {
		dir = "desc"
	}
	switch req.SortField {
	case domain.SortByName:
		return "name " + dir + ", id asc"
	case domain.SortByID:
		return "id " + dir
	default:
		return "id asc"
	}
}
