// Package rbac holds the role predicate and the HTTP guards built on it.
package rbac

import userdomain "mqtt-monitor/backend/internal/user/domain"

// Roles allowed to export data.
var ExportRoles = []userdomain.Role{userdomain.RoleAdmin, userdomain.RoleEditor}

// IsAuthorized reports whether role is one of allowed. Membership is exact; roles do not imply each other.
func IsAuthorized(role userdomain.Role, allowed ...userdomain.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
