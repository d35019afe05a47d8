package billing

import (
	"encoding/json"
	"errors"
	"time"

	"inbox-service/internal/model"

	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"
)

// ErrUnknownCustomer is returned when a webhook event references a customer
// id no client row carries. Delivery is at-least-once, so callers should
// acknowledge the event anyway.
var ErrUnknownCustomer = errors.New("no client for stripe customer")

// ErrEventIgnored is returned for event types the sync does not handle
var ErrEventIgnored = errors.New("event type ignored")

// ApplyEvent mirrors a payment provider event into the client's subscription
// columns. The update is a pure field copy keyed by customer id, so replayed
// events are harmless.
func ApplyEvent(db *gorm.DB, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		customerID := customerIDOf(sess.Customer)
		if customerID == "" {
			return errors.New("checkout session missing customer id")
		}
		return updateByCustomer(db, customerID, map[string]interface{}{
			"subscription_status": model.SubscriptionStatusActive,
		})

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		customerID := customerIDOf(sub.Customer)
		if customerID == "" {
			return errors.New("subscription missing customer id")
		}
		updates := map[string]interface{}{
			"subscription_status": mapSubscriptionStatus(sub.Status),
		}
		if sub.CurrentPeriodEnd > 0 {
			updates["subscription_current_period_end"] = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
		return updateByCustomer(db, customerID, updates)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		customerID := customerIDOf(sub.Customer)
		if customerID == "" {
			return errors.New("subscription missing customer id")
		}
		return updateByCustomer(db, customerID, map[string]interface{}{
			"subscription_status": model.SubscriptionStatusCanceled,
		})
	}

	return ErrEventIgnored
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// mapSubscriptionStatus folds provider statuses onto the local vocabulary
func mapSubscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionStatusCanceled
	default:
		return model.SubscriptionStatusNone
	}
}

func updateByCustomer(db *gorm.DB, customerID string, updates map[string]interface{}) error {
	result := db.Model(&model.Client{}).Where("stripe_customer_id = ?", customerID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUnknownCustomer
	}
	return nil
}
