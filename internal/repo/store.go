// Package repo – Record Store implementations.
//
// SQLStore and MemoryStore both satisfy services.AnimeStore, so the service
// layer does not know whether the catalog lives in SQLite or in process
// memory. MemoryStore serialises every mutation behind a mutex so ids stay
// unique under concurrent writers; SQLStore leaves that to the database.
package repo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/tbourn/go-anime-catalog/internal/domain"
)

// SQLStore is the GORM-backed Record Store.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore wraps db.
func NewSQLStore(db *gorm.DB) *SQLStore { return &SQLStore{DB: db} }

// FindAll returns one page of the catalog.
func (s *SQLStore) FindAll(ctx context.Context, req domain.PageRequest) (domain.AnimePage, error) {
	total, err := CountAnime(ctx, s.DB)
	if err != nil {
		return domain.AnimePage{}, err
	}
	if total == 0 {
		return domain.NewAnimePage(nil, req, 0), nil
	}
	items, err := ListAnimePage(ctx, s.DB, req)
	if err != nil {
		return domain.AnimePage{}, err
	}
	return domain.NewAnimePage(items, req, total), nil
}

// FindAllUnpaged returns the whole catalog in insertion order.
func (s *SQLStore) FindAllUnpaged(ctx context.Context) ([]domain.Anime, error) {
	return ListAnime(ctx, s.DB)
}

// FindByID reports found=false (and no error) when id is absent.
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*domain.Anime, bool, error) {
	a, err := GetAnime(ctx, s.DB, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// FindByName returns the anime whose name contains name.
func (s *SQLStore) FindByName(ctx context.Context, name string) ([]domain.Anime, error) {
	return FindAnimeByName(ctx, s.DB, name)
}

// Save inserts a (fresh id) when a.ID is zero, otherwise renames the existing
// row. An unknown id yields ErrNotFound.
func (s *SQLStore) Save(ctx context.Context, a domain.Anime) (*domain.Anime, error) {
	if a.ID == 0 {
		return CreateAnime(ctx, s.DB, a.Name)
	}
	if err := UpdateAnimeName(ctx, s.DB, a.ID, a.Name); err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes id, returning ErrNotFound when it is absent.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	return DeleteAnime(ctx, s.DB, id)
}

// Stats returns the row count and greatest id.
func (s *SQLStore) Stats(ctx context.Context) (int64, int64, error) {
	return AnimeStats(ctx, s.DB)
}

// MemoryStore is a process-lifetime Record Store. Ids are allocated from a
// monotonically increasing counter and never reused after a delete.
//
// This type is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []domain.Anime
	nextID int64
}

// NewMemoryStore returns a store pre-populated with one anime per seed name.
func NewMemoryStore(seed ...string) *MemoryStore {
	m := &MemoryStore{nextID: 1}
	for _, name := range seed {
		m.items = append(m.items, domain.Anime{ID: m.nextID, Name: name})
		m.nextID++
	}
	return m
}

// FindAll returns one page of the catalog.
func (m *MemoryStore) FindAll(_ context.Context, req domain.PageRequest) (domain.AnimePage, error) {
	m.mu.RLock()
	all := append([]domain.Anime(nil), m.items...)
	m.mu.RUnlock()

	sortAnime(all, req)
	total := int64(len(all))
	start := req.Offset()
	if start > len(all) || start < 0 {
		start = len(all)
	}
	end := len(all)
	if req.Size > 0 && req.Size < end-start {
		end = start + req.Size
	}
	return domain.NewAnimePage(all[start:end], req, total), nil
}

// FindAllUnpaged returns a copy of the catalog in insertion order.
func (m *MemoryStore) FindAllUnpaged(_ context.Context) ([]domain.Anime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Anime{}, m.items...), nil
}

// FindByID reports found=false when id is absent.
func (m *MemoryStore) FindByID(_ context.Context, id int64) (*domain.Anime, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		a := m.items[i]
		return &a, true, nil
	}
	return nil, false, nil
}

// FindByName returns the anime whose name contains name (case-sensitive).
func (m *MemoryStore) FindByName(_ context.Context, name string) ([]domain.Anime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Anime{}
	for _, a := range m.items {
		if strings.Contains(a.Name, name) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Save assigns a fresh id when a.ID is zero; otherwise it replaces the entry
// with the same id, or returns ErrNotFound when it is absent.
func (m *MemoryStore) Save(_ context.Context, a domain.Anime) (*domain.Anime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == 0 {
		a.ID = m.nextID
		m.nextID++
		m.items = append(m.items, a)
		return &a, nil
	}
	i := m.indexOf(a.ID)
	if i < 0 {
		return nil, ErrNotFound
	}
	m.items[i] = a
	return &a, nil
}

// Delete removes id, returning ErrNotFound when it is absent.
func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	return nil
}

// Stats returns the entry count and greatest id.
func (m *MemoryStore) Stats(_ context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var maxID int64
	for _, a := range m.items {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	return int64(len(m.items)), maxID, nil
}

// indexOf returns the position of id or -1. Callers hold mu.
func (m *MemoryStore) indexOf(id int64) int {
	for i, a := range m.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// sortAnime orders items the same way orderClause does for SQLStore.
func sortAnime(items []domain.Anime, req domain.PageRequest) {
	less := func(i, j int) bool { return items[i].ID < items[j].ID }
	switch req.SortField {
	case domain.SortByName:
		less = func(i, j int) bool {
			if items[i].Name == items[j].Name {
				return items[i].ID < items[j].ID
			}
			if req.SortDesc {
				return items[i].Name > items[j].Name
			}
			return items[i].Name < items[j].Name
		}
	case domain.SortByID:
		if req.SortDesc {
			less = func(i, j int) bool { return items[i].ID > items[j].ID }
		}
	}
	sort.SliceStable(items, less)
}
