package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription status values mirrored from the payment provider
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Client represents a tenant: an organization whose members share a
// subscription and a pool of submissions
type Client struct {
	ID                           uint           `json:"id" gorm:"primaryKey"`
	Name                         string         `json:"name" gorm:"type:varchar(100);not null"`
	Description                  string         `json:"description" gorm:"type:text"`
	OwnerID                      uint           `json:"owner_id" gorm:"index;not null"`
	StripeCustomerID             string         `json:"stripe_customer_id,omitempty" gorm:"type:varchar(100);index"`
	SubscriptionStatus           string         `json:"subscription_status" gorm:"type:varchar(20);not null;default:'none'"`
	SubscriptionCurrentPeriodEnd *time.Time     `json:"subscription_current_period_end,omitempty"`
	CreatedAt                    time.Time      `json:"created_at"`
	UpdatedAt                    time.Time      `json:"updated_at"`
	DeletedAt                    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Memberships []Membership `json:"memberships,omitempty" gorm:"foreignKey:ClientID"`
}

// SubscriptionActive reports whether the client currently has an active subscription
func (c *Client) SubscriptionActive() bool {
	return c.SubscriptionStatus == SubscriptionStatusActive
}
