package models

import "time"

// Role is the privilege level carried in access tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents a user of the store.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Name      *string   `json:"name,omitempty" gorm:"type:varchar(255)"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialised
	Role      Role      `json:"role" gorm:"type:varchar(16);not null;default:USER"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user has administrator privilege.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RefreshToken is a persisted refresh token, revoked on rotation or logout.
type RefreshToken struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;type:varchar(512);not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
	Revoked   bool      `json:"revoked" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
