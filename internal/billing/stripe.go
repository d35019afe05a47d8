// Package billing wraps the payment provider: checkout and portal session
// creation, customer provisioning, and webhook-driven subscription sync.
package billing

import (
	"errors"
	"fmt"
	"strings"

	"inbox-service/internal/model"
	"inbox-service/pkg/config"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"
)

var cfg *config.StripeConfig

// Initialize wires the Stripe API key and webhook secret from configuration
func Initialize(c *config.StripeConfig) {
	cfg = c
	stripe.Key = c.SecretKey
}

// Configured reports whether checkout can be offered
func Configured() bool {
	return cfg != nil && cfg.SecretKey != "" && cfg.PriceID != ""
}

// EnsureCustomer finds or creates a Stripe customer for the client. The
// customer id is stored on the client row the first time it is created.
func EnsureCustomer(db *gorm.DB, client *model.Client) (string, error) {
	if client.StripeCustomerID != "" {
		return client.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Name: stripe.String(client.Name),
		Metadata: map[string]string{
			"client_id": fmt.Sprintf("%d", client.ID),
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	if err := db.Model(client).Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", err
	}
	client.StripeCustomerID = cust.ID

	return cust.ID, nil
}

// NewCheckoutSession creates a subscription-mode checkout session for the
// given customer and returns the hosted checkout URL.
func NewCheckoutSession(customerID string) (string, error) {
	if !Configured() {
		return "", errors.New("billing not configured")
	}

	frontendURL := strings.TrimRight(cfg.FrontendURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}

	return sess.URL, nil
}

// NewPortalSession creates a billing-portal session for the given customer
// and returns the hosted portal URL.
func NewPortalSession(customerID string) (string, error) {
	if cfg == nil || cfg.SecretKey == "" {
		return "", errors.New("billing not configured")
	}

	frontendURL := strings.TrimRight(cfg.FrontendURL, "/")
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := portalsession.New(params)
	if err != nil {
		return "", err
	}

	return sess.URL, nil
}

// ConstructEvent verifies the webhook signature and parses the event
func ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if cfg == nil || cfg.WebhookSecret == "" {
		return stripe.Event{}, errors.New("webhook secret not configured")
	}

	return webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
}
