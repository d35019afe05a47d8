package middleware

import (
	"net/http"
	"strconv"

	"inbox-service/internal/authz"
	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequireActiveSubscription blocks staff inbox routes for clients whose
// subscription is not active. Global admins bypass the gate. It must run
// after AuthMiddleware and on routes carrying a :id client path parameter.
func RequireActiveSubscription(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		userID, ok := c.Get("user_id").(uint)
		if !ok {
			prometheus.RecordAuthError("missing_user_context")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}

		clientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
		}

		db := database.GetDB()

		var client model.Client
		if result := db.First(&client, clientID); result.Error != nil {
			log.Warn("Client not found for billing gate", zap.Uint64("client_id", clientID))
			return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
		}

		if !client.SubscriptionActive() {
			admin, err := authz.IsGlobalAdmin(db, userID)
			if err != nil {
				log.Error("Failed to check global admin role", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
			}
			if !admin {
				log.Warn("Subscription inactive, access blocked",
					zap.Uint("client_id", client.ID),
					zap.String("subscription_status", client.SubscriptionStatus))
				prometheus.RecordAuthError("subscription_inactive")
				return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "active subscription required"})
			}
		}

		return next(c)
	}
}
