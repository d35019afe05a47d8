package handler

import (
	"net/http"
	"time"

	"inbox-service/internal/authz"
	"inbox-service/internal/mailer"
	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateSubmission handles the anonymous public contact form. It is the only
// write path that does not require authentication.
func CreateSubmission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("create")

	clientID, err := paramID(c, "client_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse submission", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" || req.Email == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, email and message are required"})
	}

	db := database.GetDB()

	// Submissions are always attached to an existing client
	var client model.Client
	if result := db.First(&client, clientID); result.Error != nil {
		log.Warn("Submission for unknown client", zap.Uint("client_id", clientID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "client not found"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	submission := model.Submission{
		Name:     req.Name,
		Email:    req.Email,
		Message:  req.Message,
		Status:   model.SubmissionStatusUnread,
		ClientID: client.ID,
	}

	if result := db.Create(&submission); result.Error != nil {
		log.Error("Failed to create submission", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "submission failed"})
	}

	log.Info("Submission received",
		zap.Uint("id", submission.ID),
		zap.Uint("client_id", client.ID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Submission received",
		"submission": submission,
	})
}

// ListSubmissions returns the client's submissions, newest first
func ListSubmissions(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("list")

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

	query := db.Where("client_id = ?", clientID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []model.Submission
	if result := query.Order("created_at DESC").Find(&submissions); result.Error != nil {
		log.Error("Failed to retrieve submissions", zap.Uint("client_id", clientID), zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve submissions"})
	}

	return c.JSON(http.StatusOK, echo.Map{"submissions": submissions})
}

// GetSubmission retrieves a single submission, scoped to the client
func GetSubmission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("view")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	submissionID, err := paramID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid submission ID"})
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

	// Scoping by client_id keeps other tenants' rows invisible
	var submission model.Submission
	if result := db.Where("client_id = ?", clientID).First(&submission, submissionID); result.Error != nil {
		log.Warn("Submission not found",
			zap.Uint("client_id", clientID),
			zap.Uint("submission_id", submissionID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "submission not found"})
	}

	return c.JSON(http.StatusOK, submission)
}

// ReplySubmission sends an email reply to the submitter and marks the
// submission responded. The row is only touched after the email went out.
func ReplySubmission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("reply")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	submissionID, err := paramID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid submission ID"})
	}

	var req struct {
		Message string `json:"message"`
	}

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message is required"})
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

	var submission model.Submission
	if result := db.Where("client_id = ?", clientID).First(&submission, submissionID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "submission not found"})
	}

	if mail == nil {
		log.Error("Mailer not configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email not configured"})
	}

	messageID, err := mail.Send(c.Request().Context(), mailer.Message{
		To:      submission.Email,
		Subject: "Re: your message",
		Text:    req.Message,
	})
	if err != nil {
		log.Error("Failed to send reply email",
			zap.Uint("submission_id", submission.ID),
			zap.Error(err))
		prometheus.RecordEmailSend("failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to send reply email"})
	}
	prometheus.RecordEmailSend("sent")

	defer prometheus.TrackDBOperation("update")(time.Now())

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       model.SubmissionStatusResponded,
		"responded_at": now,
		"responded_by": userID,
	}
	if result := db.Model(&submission).Updates(updates); result.Error != nil {
		log.Error("Failed to mark submission responded", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update submission"})
	}

	log.Info("Reply sent",
		zap.Uint("submission_id", submission.ID),
		zap.Uint("client_id", clientID),
		zap.Uint("responded_by", userID),
		zap.String("provider_message_id", messageID))

	return c.JSON(http.StatusOK, echo.Map{
		"message":    "Reply sent",
		"submission": submission,
	})
}

// MarkResponded marks a submission responded without sending an email
func MarkResponded(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("respond")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	submissionID, err := paramID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid submission ID"})
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

	var submission model.Submission
	if result := db.Where("client_id = ?", clientID).First(&submission, submissionID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "submission not found"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       model.SubmissionStatusResponded,
		"responded_at": now,
		"responded_by": userID,
	}
	if result := db.Model(&submission).Updates(updates); result.Error != nil {
		log.Error("Failed to mark submission responded", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update submission"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":    "Submission marked responded",
		"submission": submission,
	})
}

// DeleteSubmission removes a submission. Only managing roles may delete.
func DeleteSubmission(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RecordSubmissionOperation("delete")

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	clientID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid client ID"})
	}

	submissionID, err := paramID(c, "sid")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid submission ID"})
	}

	db := database.GetDB()

	allowed, err := authz.CanManage(db, userID, clientID)
	if err != nil {
		log.Error("Authorization check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
	}
	if !allowed {
		log.Warn("Unauthorized submission delete attempt",
			zap.Uint("user_id", userID),
			zap.Uint("client_id", clientID))
		prometheus.RecordAuthError("access_denied")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	var submission model.Submission
	if result := db.Where("client_id = ?", clientID).First(&submission, submissionID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "submission not found"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if result := db.Delete(&submission); result.Error != nil {
		log.Error("Failed to delete submission", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete submission"})
	}

	log.Info("Submission deleted",
		zap.Uint("submission_id", submissionID),
		zap.Uint("client_id", clientID))

	return c.JSON(http.StatusOK, echo.Map{"message": "Submission deleted"})
}
