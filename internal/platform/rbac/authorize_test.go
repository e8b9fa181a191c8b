package rbac

import (
	"testing"

	userdomain "mqtt-monitor/backend/internal/user/domain"
)

func TestIsAuthorized(t *testing.T) {
	testCases := []struct {
		name    string
		role    userdomain.Role
		allowed []userdomain.Role
		want    bool
	}{
		{"admin export", userdomain.RoleAdmin, ExportRoles, true},
		{"editor export", userdomain.RoleEditor, ExportRoles, true},
		{"viewer export", userdomain.RoleViewer, ExportRoles, false},
		{"admin not implied", userdomain.RoleAdmin, []userdomain.Role{userdomain.RoleViewer}, false},
		{"empty allowed", userdomain.RoleAdmin, nil, false},
		{"empty role", "", ExportRoles, false},
		{"unknown role", "root", ExportRoles, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAuthorized(tc.role, tc.allowed...); got != tc.want {
				t.Errorf("IsAuthorized(%q, %v) = %v, want %v", tc.role, tc.allowed, got, tc.want)
			}
		})
	}
}
