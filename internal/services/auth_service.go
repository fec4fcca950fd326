// Package services – AuthService
//
// AuthService checks HTTP Basic credentials against the devdojo_user table
// and seeds that table at startup. Passwords are stored as bcrypt hashes; a
// seed password may be supplied pre-hashed with a "{bcrypt}" prefix.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/repo"
)

// bcryptPrefix marks a seed password that is already a bcrypt hash.
const bcryptPrefix = "{bcrypt}"

// UserRepo defines the credential-store contract required by AuthService.
type UserRepo interface {
	// GetUserByUsername returns the user or repo.ErrNotFound.
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
	// CreateUser inserts a user or returns repo.ErrDuplicate.
	CreateUser(ctx context.Context, db *gorm.DB, name, username, passwordHash, authorities string) (*domain.User, error)
}

// SeedUser is a credential entry provisioned at startup.
type SeedUser struct {
	Name        string
	Username    string
	Password    string // plaintext, or "{bcrypt}<hash>"
	Authorities string
}

// AuthService authenticates callers.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the credential repository.
	Repo UserRepo
	// Cost is the bcrypt cost used when hashing seed passwords.
	Cost int

	decoyOnce sync.Once
	decoy     []byte
}

// NewAuthService constructs an AuthService using bcrypt.DefaultCost.
func NewAuthService(db *gorm.DB, r UserRepo) *AuthService {
	return &AuthService{DB: db, Repo: r, Cost: bcrypt.DefaultCost}
}

// Authenticate returns the user matching username and password, or
// ErrInvalidCredentials. Store failures are returned as-is. An unknown
// username still pays for one bcrypt comparison so that response time does
// not reveal which usernames exist.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if errors.Is(err, repo.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.decoyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Seed provisions users, skipping usernames that already exist.
// It returns the number of users created.
func (s *AuthService) Seed(ctx context.Context, users []SeedUser) (int, error) {
	created := 0
	for _, su := range users {
		hash, err := s.hash(su.Password)
		if err != nil {
			return created, err
		}
		name := su.Name
		if name == "" {
			name = su.Username
		}
		_, err = s.Repo.CreateUser(ctx, s.DB, name, su.Username, hash, su.Authorities)
		if errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// decoyHash returns a hash at the service's cost, computed on first use,
// that no password is expected to match.
func (s *AuthService) decoyHash() []byte {
	s.decoyOnce.Do(func() {
		s.decoy, _ = bcrypt.GenerateFromPassword([]byte("invalid-user-decoy"), s.cost())
	})
	return s.decoy
}

func (s *AuthService) cost() int {
	if s.Cost < bcrypt.MinCost || s.Cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return s.Cost
}

// hash returns the bcrypt hash for a seed password.
func (s *AuthService) hash(password string) (string, error) {
	if strings.HasPrefix(password, bcryptPrefix) {
		return strings.TrimPrefix(password, bcryptPrefix), nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
