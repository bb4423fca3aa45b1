package auth

import "mmh_backend/internal/models"

// Permission is a capability checked at the route boundary.
type Permission string

const (
	PermUsersManage Permission = "users:manage"
	PermUsersSelf   Permission = "users:self"

	PermOffersRead   Permission = "offers:read"
	PermOffersWrite  Permission = "offers:write"
	PermOffersAnyone Permission = "offers:any" // act on offers of other users

	PermOrdersRead   Permission = "orders:read"
	PermOrdersCreate Permission = "orders:create"
	PermOrdersUpdate Permission = "orders:update"
	PermOrdersStatus Permission = "orders:status"
	PermOrdersAnyone Permission = "orders:any"
)

var rolePermissions = map[models.UserRole][]Permission{
	models.UserRoleAdmin: {
		PermUsersManage, PermUsersSelf,
		PermOffersRead, PermOffersWrite, PermOffersAnyone,
		PermOrdersRead, PermOrdersCreate, PermOrdersUpdate, PermOrdersStatus, PermOrdersAnyone,
	},
	models.UserRoleMedia: {
		PermUsersSelf,
		PermOffersRead, PermOffersWrite,
		PermOrdersRead, PermOrdersStatus,
	},
	models.UserRoleAgency: {
		PermUsersSelf,
		PermOffersRead,
		PermOrdersRead, PermOrdersCreate, PermOrdersUpdate,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role models.UserRole, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// RolesWith lists the roles holding perm, used to build route guards.
func RolesWith(perm Permission) []models.UserRole {
	var roles []models.UserRole
	for _, role := range []models.UserRole{models.UserRoleAdmin, models.UserRoleMedia, models.UserRoleAgency} {
		if HasPermission(role, perm) {
			roles = append(roles, role)
		}
	}
	return roles
}

func IsAdmin(role models.UserRole) bool {
	return role == models.UserRoleAdmin
}
