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

// dashboardStats is the reduced view of a client's inbox
type dashboardStats struct {
	Total               int     `json:"total"`
	Unread              int     `json:"unread"`
	Responded           int     `json:"responded"`
	MeanResponseSeconds float64 `json:"mean_response_seconds"`
}

// computeDashboardStats reduces a client's submissions into counts and the
// mean response latency over responded rows
func computeDashboardStats(submissions []model.Submission) dashboardStats {
	stats := dashboardStats{Total: len(submissions)}

	var latencySum time.Duration
	var latencyCount int
	for _, s := range submissions {
		switch s.Status {
		case model.SubmissionStatusResponded:
			stats.Responded++
			if s.RespondedAt != nil {
				latencySum += s.RespondedAt.Sub(s.CreatedAt)
				latencyCount++
			}
		default:
			stats.Unread++
		}
	}

	if latencyCount > 0 {
		stats.MeanResponseSeconds = latencySum.Seconds() / float64(latencyCount)
	}

	return stats
}

// GetDashboard returns submission counts and mean response latency for a client
func GetDashboard(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordClientOperation("dashboard")

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

	var submissions []model.Submission
	if result := db.Where("client_id = ?", clientID).Find(&submissions); result.Error != nil {
		log.Error("Failed to retrieve submissions for dashboard",
			zap.Uint("client_id", clientID),
			zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute dashboard"})
	}

	return c.JSON(http.StatusOK, computeDashboardStats(submissions))
}
