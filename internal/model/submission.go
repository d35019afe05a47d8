package model

import (
	"time"

	"gorm.io/gorm"
)

// Submission status values
const (
	SubmissionStatusUnread    = "unread"
	SubmissionStatusResponded = "responded"
)

// Submission represents an inbound contact-form message awaiting or having
// received a reply. Every submission belongs to exactly one client.
type Submission struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Email       string         `json:"email" gorm:"type:varchar(100);not null"`
	Message     string         `json:"message" gorm:"type:text;not null"`
	Status      string         `json:"status" gorm:"type:varchar(20);not null;default:'unread';index"`
	RespondedAt *time.Time     `json:"responded_at,omitempty"`
	RespondedBy *uint          `json:"responded_by,omitempty"`
	ClientID    uint           `json:"client_id" gorm:"index;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
