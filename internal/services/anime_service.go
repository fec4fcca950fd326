// Package services – AnimeService
//
// This file implements the AnimeService, which orchestrates Record Store
// operations for the catalog. It is the single point where a missing id
// becomes ErrAnimeNotFound: callers never see the store's found flag.
// Names are normalized (NFC, trimmed, inner whitespace collapsed) before they
// are persisted. Length limits are enforced by package validation.
package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/observability"
	"github.com/tbourn/go-anime-catalog/internal/repo"
	"github.com/tbourn/go-anime-catalog/internal/validation"
)

// AnimeStore is the Record Store contract required by AnimeService.
// Implementations must be safe for concurrent use.
type AnimeStore interface {
	// FindAll returns a bounded, ordered page of the catalog.
	FindAll(ctx context.Context, req domain.PageRequest) (domain.AnimePage, error)
	// FindAllUnpaged returns the full catalog in insertion order.
	FindAllUnpaged(ctx context.Context) ([]domain.Anime, error)
	// FindByID reports found=false, not an error, when id is absent.
	FindByID(ctx context.Context, id int64) (*domain.Anime, bool, error)
	// FindByName returns matching entries; an empty slice when none match.
	FindByName(ctx context.Context, name string) ([]domain.Anime, error)
	// Save assigns a fresh id when a.ID is zero. Otherwise it only updates:
	// an absent id yields repo.ErrNotFound and nothing is written.
	Save(ctx context.Context, a domain.Anime) (*domain.Anime, error)
	// Delete removes id, or returns repo.ErrNotFound when it is absent.
	Delete(ctx context.Context, id int64) error
	// Stats returns the entry count and greatest id.
	Stats(ctx context.Context) (count, maxID int64, err error)
}

// AnimeService provides the catalog operations used by the HTTP layer.
// Besides its store it only keeps a revision counter bumped on every
// successful mutation, used to build cache validators.
type AnimeService struct {
	// Store is the Record Store backing the catalog.
	Store AnimeStore

	rev atomic.Int64
}

// NewAnimeService constructs an AnimeService over store.
func NewAnimeService(store AnimeStore) *AnimeService {
	return &AnimeService{Store: store}
}

// ListAll returns one page of the catalog.
func (s *AnimeService) ListAll(ctx context.Context, req domain.PageRequest) (domain.AnimePage, error) {
	return s.Store.FindAll(ctx, req)
}

// ListAllNonPageable returns the whole catalog.
func (s *AnimeService) ListAllNonPageable(ctx context.Context) ([]domain.Anime, error) {
	return s.Store.FindAllUnpaged(ctx)
}

// FindByIDOrFail returns the anime with id or ErrAnimeNotFound.
func (s *AnimeService) FindByIDOrFail(ctx context.Context, id int64) (_ *domain.Anime, err error) {
	ctx, span := observability.StartSpan(ctx, "AnimeService.FindByIDOrFail", observability.AnimeID(id))
	defer func() { observability.EndSpan(span, err) }()

	a, found, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAnimeNotFound
	}
	return a, nil
}

// FindByName returns the anime whose name matches; no match is not an error.
func (s *AnimeService) FindByName(ctx context.Context, name string) ([]domain.Anime, error) {
	return s.Store.FindByName(ctx, name)
}

// Save creates a new anime from a validated body. The store assigns the id.
func (s *AnimeService) Save(ctx context.Context, body validation.AnimePostRequestBody) (_ *domain.Anime, err error) {
	ctx, span := observability.StartSpan(ctx, "AnimeService.Save")
	defer func() { observability.EndSpan(span, err) }()

	name := cleanName(body.Name)
	a, err := s.Store.Save(ctx, domain.Anime{Name: name})
	if err != nil {
		return nil, err
	}
	s.mutated("create")
	span.SetAttributes(observability.AnimeID(a.ID), observability.AnimeName(name))
	return a, nil
}

// Replace overwrites the name of an existing anime, keeping its id. A record
// deleted after the lookup stays deleted and yields ErrAnimeNotFound.
func (s *AnimeService) Replace(ctx context.Context, body validation.AnimePutRequestBody) (err error) {
	var id int64
	if body.ID != nil {
		id = *body.ID
	}
	ctx, span := observability.StartSpan(ctx, "AnimeService.Replace", observability.AnimeID(id))
	defer func() { observability.EndSpan(span, err) }()

	existing, err := s.FindByIDOrFail(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.Store.Save(ctx, domain.Anime{ID: existing.ID, Name: cleanName(body.Name)}); err != nil {
		return storeErr(err)
	}
	s.mutated("replace")
	return nil
}

// Delete removes an existing anime; an absent id yields ErrAnimeNotFound.
func (s *AnimeService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := observability.StartSpan(ctx, "AnimeService.Delete", observability.AnimeID(id))
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.FindByIDOrFail(ctx, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return storeErr(err)
	}
	s.mutated("delete")
	return nil
}

// Stats exposes the store's count and greatest id for cache validators.
func (s *AnimeService) Stats(ctx context.Context) (int64, int64, error) {
	return s.Store.Stats(ctx)
}

// Revision returns the number of mutations applied through this service.
func (s *AnimeService) Revision() int64 { return s.rev.Load() }

func (s *AnimeService) mutated(op string) {
	s.rev.Add(1)
	animeMutations.WithLabelValues(op).Inc()
}

// storeErr maps the store's not-found sentinel to ErrAnimeNotFound.
func storeErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrAnimeNotFound
	}
	return err
}

// cleanName normalizes a validated name.
func cleanName(name *string) string {
	if name == nil {
		return ""
	}
	return validation.NormalizeName(*name)
}
