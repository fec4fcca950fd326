// Package domain defines the persistence models for the anime catalog and
// its credential store. These types are mapped with GORM and shared across
// the repository, service, and HTTP layers.
package domain

import (
	"strings"
	"time"
)

// Anime is a single catalog entry.
//
// Fields:
//   - ID: store-assigned identifier, immutable after creation.
//   - Name: non-empty display name.
type Anime struct {
	ID   int64  `json:"id"   gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"type:varchar(255);not null;index"`
}

// TableName returns the database table name for Anime.
func (Anime) TableName() string { return "anime" }

// Role labels attached to an authenticated caller.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User is a credential-store entry. Password holds a bcrypt hash and
// Authorities a comma-separated role list (e.g. "ROLE_ADMIN,ROLE_USER").
type User struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null"`
	Username    string    `json:"username"    gorm:"type:varchar(64);not null;uniqueIndex"`
	Password    string    `json:"-"           gorm:"type:varchar(100);not null"`
	Authorities string    `json:"authorities" gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "devdojo_user" }

// Roles splits Authorities into trimmed, non-empty role names.
func (u User) Roles() []string {
	parts := strings.Split(u.Authorities, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasRole reports whether the user carries role. ROLE_ADMIN implies ROLE_USER.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles() {
		if r == role || (r == RoleAdmin && role == RoleUser) {
			return true
		}
	}
	return false
}
