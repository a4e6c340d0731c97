// Package identity provides role constants and capability helpers.
package identity

import "strings"

// Role constants for clinical platform users.
const (
	RoleClinician = "CLINICIAN"
	RoleAdmin     = "ADMIN"
	RoleSuperuser = "SUPERUSER"
)

// NormalizeRole upper-cases and trims a role string.
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

// IsValidRole reports whether role names a known role.
func IsValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleClinician, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// CanManageChannels reports whether the role may create channels and
// mutate channel membership.
func CanManageChannels(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}
