package handler

import (
	"net/http"
	"time"

	"inbox-service/internal/authz"
	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateClient creates a client and makes the caller its owner
func CreateClient(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("create")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse client creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	client := model.Client{
		Name:               req.Name,
		Description:        req.Description,
		OwnerID:            userID,
		SubscriptionStatus: model.SubscriptionStatusNone,
	}

	if result := tx.Create(&client); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create client", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "client creation failed"})
	}

	membership := model.Membership{
		UserID:   userID,
		ClientID: client.ID,
		Role:     model.RoleOwner,
	}

	if result := tx.Create(&membership); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create owner membership", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "membership creation failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction commit failed"})
	}

	log.Info("Client created",
		zap.String("name", client.Name),
		zap.Uint("id", client.ID),
		zap.Uint("owner_id", client.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Client created successfully",
		"client":  client,
	})
}

// ListClients returns the clients the caller belongs to
func ListClients(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("list")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var memberships []model.Membership
	if result := database.GetDB().Preload("Client").Where("user_id = ?", userID).Find(&memberships); result.Error != nil {
		log.Error("Failed to retrieve clients", zap.Uint("user_id", userID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve clients"})
	}

	clients := make([]echo.Map, 0, len(memberships))
	for _, m := range memberships {
		clients = append(clients, echo.Map{
			"client": m.Client,
			"role":   m.Role,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"clients": clients})
}

// GetClient retrieves client details for members
func GetClient(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("access")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	allowed, err := authz.CanView(database.GetDB(), userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		log.Warn("Unauthorized client access attempt",
			zap.Uint("user_id", userID),
			zap.Uint("client_id", clientID))
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var client model.Client
	if result := database.GetDB().First(&client, clientID); result.Error != nil {
		log.Warn("Client not found", zap.Uint("client_id", clientID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	return c.JSON(http.StatusOK, client)
}
