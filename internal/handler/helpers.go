package handler

import (
	"strconv"

	"inbox-service/internal/mailer"

	"github.com/labstack/echo/v4"
)

// mail is the transactional email sender used by the reply flow.
// It is set once at startup and replaced by tests.
var mail mailer.Mailer

// InitMailer wires the email sender used by reply handlers
func InitMailer(m mailer.Mailer) {
	mail = m
}

// currentUserID pulls the authenticated user id stored by AuthMiddleware
func currentUserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// paramID parses a numeric path parameter
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
