package model

import (
	"time"

	"gorm.io/gorm"
)

// Per-client roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// ValidRole reports whether the given role is one a membership may carry
func ValidRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleAgent
}

// Membership represents the association between users and clients.
// A user can belong to multiple clients with a different role in each.
type Membership struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index;not null"`
	ClientID  uint           `json:"client_id" gorm:"index;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'agent'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Client Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
}
