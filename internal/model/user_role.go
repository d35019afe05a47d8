package model

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents a global role grant, independent of any client.
// A user holding the 'admin' role here can act on every client.
type UserRole struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"uniqueIndex;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
