package handler

import (
	"errors"
	"net/http"
	"time"

	"inbox-service/internal/model"
	"inbox-service/pkg/database"
	"inbox-service/pkg/jwtutil"
	"inbox-service/pkg/logger"
	"inbox-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Register creates a new user account and returns a token
func Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	// Reject duplicate emails up front
	var existing model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&existing)
	if result.Error == nil {
		prometheus.RecordAuthError("duplicate_email")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		log.Error("Failed to check existing user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	user := model.User{
		Email:    req.Email,
		Password: string(hash),
	}
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// Login authenticates a user and returns a token, optionally scoped to a client
func Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		ClientID *uint  `json:"client_id,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// When a client is requested, verify the caller belongs to it and embed
	// the client context into the token
	var token string
	var err error
	if req.ClientID != nil {
		var membership model.Membership
		result := database.GetDB().Where("user_id = ? AND client_id = ?", user.ID, *req.ClientID).First(&membership)
		if result.Error != nil {
			log.Warn("User does not belong to the requested client",
				zap.String("email", req.Email),
				zap.Uint("client_id", *req.ClientID))
			prometheus.RecordAuthError("client_access_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to the specified client"})
		}

		var client model.Client
		clientName := ""
		if result := database.GetDB().Select("name").First(&client, *req.ClientID); result.Error == nil {
			clientName = client.Name
		}

		token, err = jwtutil.GenerateTokenWithClient(user.Email, user.ID, req.ClientID, clientName, membership.Role)
	} else {
		token, err = jwtutil.GenerateToken(user.Email, user.ID)
	}

	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.Uint("user_id", user.ID), zap.String("email", user.Email))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated user's profile and memberships
func Me(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, ok := currentUserID(c)
	if !ok {
		prometheus.RecordAuthError("missing_user_context")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		log.Error("User not found", zap.Uint("user_id", userID), zap.Error(result.Error))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	var memberships []model.Membership
	if result := database.GetDB().Preload("Client").Where("user_id = ?", userID).Find(&memberships); result.Error != nil {
		log.Error("Failed to load memberships", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load memberships"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":        user,
		"memberships": memberships,
	})
}
