package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/repo"
	"github.com/tbourn/go-anime-catalog/internal/validation"
)

// ----- Fake store -----

type fakeStore struct {
	byID    map[int64]domain.Anime
	nextID  int64
	saved   []domain.Anime
	deleted []int64

	findErr   error
	saveErr   error
	deleteErr error

	lastPage domain.PageRequest
	lastName string
}

func newFakeStore(items ...domain.Anime) *fakeStore {
	s := &fakeStore{byID: map[int64]domain.Anime{}, nextID: 100}
	for _, a := range items {
		s.byID[a.ID] = a
	}
	return s
}

func (s *fakeStore) FindAll(ctx context.Context, req domain.PageRequest) (domain.AnimePage, error) {
	s.lastPage = req
	return domain.NewAnimePage([]domain.Anime{{ID: 1, Name: "p"}}, req, 1), nil
}

func (s *fakeStore) FindAllUnpaged(ctx context.Context) ([]domain.Anime, error) {
	out := []domain.Anime{}
	for _, a := range s.byID {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) FindByID(ctx context.Context, id int64) (*domain.Anime, bool, error) {
	if s.findErr != nil {
		return nil, false, s.findErr
	}
	a, ok := s.byID[id]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (s *fakeStore) FindByName(ctx context.Context, name string) ([]domain.Anime, error) {
	s.lastName = name
	return []domain.Anime{}, nil
}

func (s *fakeStore) Save(ctx context.Context, a domain.Anime) (*domain.Anime, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if a.ID == 0 {
		a.ID = s.nextID
		s.nextID++
	} else if _, ok := s.byID[a.ID]; !ok {
		return nil, repo.ErrNotFound
	}
	s.byID[a.ID] = a
	s.saved = append(s.saved, a)
	return &a, nil
}

func (s *fakeStore) Delete(ctx context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.byID[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.byID, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (int64, int64, error) {
	return int64(len(s.byID)), s.nextID - 1, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

// ----- Tests -----

func TestNewAnimeService_Defaults(t *testing.T) {
	st := newFakeStore()
	s := NewAnimeService(st)
	if s.Store != st || s.Revision() != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestListAll_AndFindByName_PassThrough(t *testing.T) {
	st := newFakeStore()
	s := NewAnimeService(st)

	req := domain.PageRequest{Page: 2, Size: 5, SortField: domain.SortByName}
	p, err := s.ListAll(context.Background(), req)
	if err != nil || st.lastPage != req || len(p.Content) != 1 {
		t.Fatalf("ListAll: %+v %+v err=%v", st.lastPage, p, err)
	}

	got, err := s.FindByName(context.Background(), "Chico")
	if err != nil || got == nil || len(got) != 0 || st.lastName != "Chico" {
		t.Fatalf("FindByName: %v %v %q", got, err, st.lastName)
	}
}

func TestFindByIDOrFail(t *testing.T) {
	st := newFakeStore(domain.Anime{ID: 1, Name: "DBZ"})
	s := NewAnimeService(st)

	a, err := s.FindByIDOrFail(context.Background(), 1)
	if err != nil || a.Name != "DBZ" {
		t.Fatalf("found case: %+v %v", a, err)
	}
	if _, err := s.FindByIDOrFail(context.Background(), 2); !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("expected ErrAnimeNotFound, got %v", err)
	}

	boom := errors.New("db down")
	st.findErr = boom
	if _, err := s.FindByIDOrFail(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("store error must propagate, got %v", err)
	}
}

func TestSave_AssignsIDAndNormalizesName(t *testing.T) {
	st := newFakeStore()
	s := NewAnimeService(st)

	a, err := s.Save(context.Background(), validation.AnimePostRequestBody{Name: strPtr("  Chico   Tripa \t")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.ID != 100 || a.Name != "Chico Tripa" {
		t.Fatalf("unexpected anime: %+v", a)
	}
	if len(st.saved) != 1 || st.saved[0].Name != "Chico Tripa" {
		t.Fatalf("store.Save not called with a fresh anime: %+v", st.saved)
	}

	st.saveErr = errors.New("fail")
	if _, err := s.Save(context.Background(), validation.AnimePostRequestBody{Name: strPtr("x")}); err == nil {
		t.Fatalf("expected save error")
	}
}

func TestReplace_KeepsIDAndUpdatesName(t *testing.T) {
	st := newFakeStore(domain.Anime{ID: 1, Name: "Chico Tripa"})
	s := NewAnimeService(st)

	err := s.Replace(context.Background(), validation.AnimePutRequestBody{ID: intPtr(1), Name: strPtr("Chico Tripa, o retorno")})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := st.byID[1]; got.Name != "Chico Tripa, o retorno" {
		t.Fatalf("name not replaced: %+v", got)
	}
	if len(st.byID) != 1 {
		t.Fatalf("replace must not create a new entry: %+v", st.byID)
	}
}

func TestReplace_NotFound(t *testing.T) {
	st := newFakeStore()
	s := NewAnimeService(st)

	err := s.Replace(context.Background(), validation.AnimePutRequestBody{ID: intPtr(7), Name: strPtr("x")})
	if !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("expected ErrAnimeNotFound, got %v", err)
	}
	if len(st.saved) != 0 {
		t.Fatalf("nothing must be saved: %+v", st.saved)
	}
	if err := s.Replace(context.Background(), validation.AnimePutRequestBody{Name: strPtr("x")}); !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("nil id must be not found, got %v", err)
	}
}

// vanishingStore deletes the record right after it has been looked up,
// standing in for a concurrent DELETE between lookup and write.
type vanishingStore struct {
	*fakeStore
}

func (s vanishingStore) FindByID(ctx context.Context, id int64) (*domain.Anime, bool, error) {
	a, found, err := s.fakeStore.FindByID(ctx, id)
	delete(s.byID, id)
	return a, found, err
}

func TestReplace_ConcurrentDeleteStaysDeleted(t *testing.T) {
	st := vanishingStore{newFakeStore(domain.Anime{ID: 1, Name: "DBZ"})}
	s := NewAnimeService(st)

	err := s.Replace(context.Background(), validation.AnimePutRequestBody{ID: intPtr(1), Name: strPtr("DBGT")})
	if !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("expected ErrAnimeNotFound, got %v", err)
	}
	if _, ok := st.byID[1]; ok {
		t.Fatalf("deleted record was recreated: %+v", st.byID)
	}
	if s.Revision() != 0 {
		t.Fatalf("failed replace must not bump revision")
	}
}

func TestDelete_ConcurrentDeleteIsNotFound(t *testing.T) {
	st := vanishingStore{newFakeStore(domain.Anime{ID: 1, Name: "DBZ"})}
	s := NewAnimeService(st)

	if err := s.Delete(context.Background(), 1); !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("expected ErrAnimeNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	st := newFakeStore(domain.Anime{ID: 1, Name: "DBZ"})
	s := NewAnimeService(st)

	if err := s.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(st.deleted) != 1 || st.deleted[0] != 1 {
		t.Fatalf("store.Delete not called: %+v", st.deleted)
	}
	if err := s.Delete(context.Background(), 1); !errors.Is(err, ErrAnimeNotFound) {
		t.Fatalf("second delete must be ErrAnimeNotFound, got %v", err)
	}
	if len(st.deleted) != 1 {
		t.Fatalf("store.Delete must not run for absent id")
	}
}

func TestSave_KeepsLongNamesWhole(t *testing.T) {
	st := newFakeStore()
	s := NewAnimeService(st)

	long := strings.Repeat("☃", 300)
	a, err := s.Save(context.Background(), validation.AnimePostRequestBody{Name: &long})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.Name != long {
		t.Fatalf("name must not be shortened, got %d runes", len([]rune(a.Name)))
	}
}

func TestRevision_BumpsOnSuccessfulMutationsOnly(t *testing.T) {
	st := newFakeStore(domain.Anime{ID: 1, Name: "DBZ"})
	s := NewAnimeService(st)
	ctx := context.Background()

	if s.Revision() != 0 {
		t.Fatalf("fresh service revision = %d", s.Revision())
	}
	if _, err := s.Save(ctx, validation.AnimePostRequestBody{Name: strPtr("Naruto")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Replace(ctx, validation.AnimePutRequestBody{ID: intPtr(1), Name: strPtr("DBGT")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	_ = s.Delete(ctx, 999)
	if got := s.Revision(); got != 2 {
		t.Fatalf("revision = %d; want 2", got)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := s.Revision(); got != 3 {
		t.Fatalf("revision = %d; want 3", got)
	}
}
