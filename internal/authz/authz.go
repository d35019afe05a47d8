// Package authz answers "may this user act on this client" by resolving the
// user's effective role from the global user_roles table and the per-client
// memberships table.
package authz

import (
	"errors"

	"inbox-service/internal/model"

	"gorm.io/gorm"
)

// ResolveRole returns the user's effective role for the given client.
// A global 'admin' grant wins over any membership; otherwise the membership
// role for the client applies. An empty role means no access.
func ResolveRole(db *gorm.DB, userID, clientID uint) (string, error) {
	var global model.UserRole
	err := db.Where("user_id = ? AND role = ?", userID, model.RoleAdmin).First(&global).Error
	if err == nil {
		return model.RoleAdmin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var membership model.Membership
	err = db.Where("user_id = ? AND client_id = ?", userID, clientID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return membership.Role, nil
}

// IsGlobalAdmin reports whether the user holds the cross-client admin role
func IsGlobalAdmin(db *gorm.DB, userID uint) (bool, error) {
	var global model.UserRole
	err := db.Where("user_id = ? AND role = ?", userID, model.RoleAdmin).First(&global).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// CanView reports whether the user may read the client's inbox.
// Any role on the client is enough, including 'agent'.
func CanView(db *gorm.DB, userID, clientID uint) (bool, error) {
	role, err := ResolveRole(db, userID, clientID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

// CanManage reports whether the user may perform destructive or
// administrative actions on the client. Only 'admin' and 'owner' qualify.
func CanManage(db *gorm.DB, userID, clientID uint) (bool, error) {
	role, err := ResolveRole(db, userID, clientID)
	if err != nil {
		return false, err
	}
	return role == model.RoleAdmin || role == model.RoleOwner, nil
}
