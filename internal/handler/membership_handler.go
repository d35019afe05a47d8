package handler

import (
	"errors"
	"net/http"
	"time"

	"inbox-service/internal/authz"
	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddMember associates a user with a client, or updates their role
func AddMember(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("add_member")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	var req struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse member request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	// Default role if not provided
	if req.Role == "" {
		req.Role = model.RoleAgent
	}
	if !model.ValidRole(req.Role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	db := database.GetDB()

	allowed, err := authz.CanManage(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		log.Warn("Unauthorized attempt to add member",
			zap.Uint("requesting_user_id", userID),
			zap.Uint("client_id", clientID))
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	// Target user must exist
	var target model.User
	if result := db.First(&target, req.UserID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	// Re-adding an existing member updates the role
	var existing model.Membership
	result := db.Where("client_id = ? AND user_id = ?", clientID, req.UserID).First(&existing)
	if result.Error == nil {
		if existing.Role != req.Role {
			existing.Role = req.Role
			if updateResult := db.Save(&existing); updateResult.Error != nil {
				log.Error("Failed to update member role", zap.Error(updateResult.Error))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update member role"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":    "Member role updated",
			"membership": existing,
		})
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		log.Error("Failed to check existing membership", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	membership := model.Membership{
		UserID:   req.UserID,
		ClientID: clientID,
		Role:     req.Role,
	}

	if result := db.Create(&membership); result.Error != nil {
		log.Error("Failed to create membership", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add member"})
	}

	log.Info("Member added",
		zap.Uint("client_id", clientID),
		zap.Uint("user_id", req.UserID),
		zap.String("role", req.Role))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Member added successfully",
		"membership": membership,
	})
}

// ListMembers returns all members of a client
func ListMembers(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("list_members")

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

	defer prometheus.TrackDBOperation("query")(time.Now())

	var memberships []model.Membership
	if result := db.Preload("User").Where("client_id = ?", clientID).Find(&memberships); result.Error != nil {
		log.Error("Failed to retrieve members", zap.Uint("client_id", clientID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve members"})
	}

	return c.JSON(http.StatusOK, echo.Map{"members": memberships})
}

// RemoveMember removes a user from a client
func RemoveMember(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("remove_member")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	targetID, err := paramID(c, "uid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	db := database.GetDB()

	actorRole, err := authz.ResolveRole(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if actorRole != model.RoleAdmin && actorRole != model.RoleOwner {
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var membership model.Membership
	if result := db.Where("client_id = ? AND user_id = ?", clientID, targetID).First(&membership); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
	}

	// Owners can only be removed by another owner or a global admin
	if membership.Role == model.RoleOwner && actorRole != model.RoleOwner {
		admin, err := authz.IsGlobalAdmin(db, userID)
		if err != nil {
			log.Error("Authorization check failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
		}
		if !admin {
			prometheus.RecordAuthError("access_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only an owner can remove an owner"})
		}
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if result := db.Delete(&membership); result.Error != nil {
		log.Error("Failed to remove member", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove member"})
	}

	log.Info("Member removed",
		zap.Uint("client_id", clientID),
		zap.Uint("user_id", targetID))

	return c.JSON(http.StatusOK, echo.Map{"message": "Member removed successfully"})
}
