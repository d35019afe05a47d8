package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"inbox-service/internal/authz"
	"inbox-service/internal/billing"
	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateCheckoutSession starts a checkout session for the client's subscription
func CreateCheckoutSession(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBillingOperation("checkout")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	db := database.GetDB()

	allowed, err := authz.CanManage(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var client model.Client
	if result := db.First(&client, clientID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	if !billing.Configured() {
		log.Error("Billing not configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "billing not configured"})
	}

	customerID, err := billing.EnsureCustomer(db, &client)
	if err != nil {
		log.Error("Failed to ensure billing customer",
			zap.Uint("client_id", client.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to prepare billing"})
	}

	url, err := billing.NewCheckoutSession(customerID)
	if err != nil {
		log.Error("Failed to create checkout session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create checkout session"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// CreatePortalSession creates a billing-portal session for the client
func CreatePortalSession(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBillingOperation("portal")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	db := database.GetDB()

	allowed, err := authz.CanManage(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var client model.Client
	if result := db.First(&client, clientID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	if client.StripeCustomerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no billing customer for client"})
	}

	url, err := billing.NewPortalSession(client.StripeCustomerID)
	if err != nil {
		log.Error("Failed to create portal session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create portal session"})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// GetSubscription returns the client's mirrored subscription state
func GetSubscription(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordBillingOperation("status")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	db := database.GetDB()

	allowed, err := authz.CanView(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var client model.Client
	if result := db.First(&client, clientID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscription_status":             client.SubscriptionStatus,
		"subscription_current_period_end": client.SubscriptionCurrentPeriodEnd,
		"active":                          client.SubscriptionActive(),
	})
}

// StripeWebhook receives payment provider events and mirrors subscription
// state into the clients table. Delivery is at-least-once; the sync is an
// idempotent field copy, so duplicates are acknowledged without harm.
func StripeWebhook(c echo.Context) error {
	log := logger.FromEcho(c)

	const maxBodyBytes = int64(65536)
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		log.Warn("Failed to read webhook payload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	event, err := billing.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("Webhook signature verification failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "signature verification failed"})
	}

	prometheus.RecordWebhookEvent(string(event.Type))

	defer prometheus.TrackDBOperation("update")(time.Now())

	err = billing.ApplyEvent(database.GetDB(), event)
	switch {
	case err == nil:
		log.Info("Webhook event applied", zap.String("type", string(event.Type)))
	case errors.Is(err, billing.ErrEventIgnored):
		// Unhandled event types are acknowledged so the provider stops retrying
	case errors.Is(err, billing.ErrUnknownCustomer):
		log.Warn("Webhook event for unknown customer", zap.String("type", string(event.Type)))
	default:
		log.Error("Failed to apply webhook event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to apply event"})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
