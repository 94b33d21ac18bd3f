// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain constants shared across the application:
// user roles and permissions, site pages and event log categories.
package model

import "strings"

// User roles.
const (
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is an assignable user role.
func ValidRole(role string) bool {
	return role == RoleEditor || role == RoleAdmin
}

// Permissions are the effective capabilities reported to clients.
type Permissions struct {
	IsSuperAdmin    bool `json:"isSuperAdmin"`
	CanDeleteAdmins bool `json:"canDeleteAdmins"`
	CanManageUsers  bool `json:"canManageUsers"`
	CanEditContent  bool `json:"canEditContent"`
}

// IsSuperAdmin reports whether email belongs to the configured super-admin.
// The comparison is case-insensitive; an empty super-admin email matches nobody.
func IsSuperAdmin(email, superAdminEmail string) bool {
	superAdminEmail = strings.TrimSpace(superAdminEmail)
	if superAdminEmail == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(email), superAdminEmail)
}

// EffectivePermissions computes the permissions of a user from its role and
// stored flags. The super-admin always has every permission regardless of flags.
func EffectivePermissions(role, email string, canDeleteAdmins bool, superAdminEmail string) Permissions {
	if IsSuperAdmin(email, superAdminEmail) {
		return Permissions{
			IsSuperAdmin:    true,
			CanDeleteAdmins: true,
			CanManageUsers:  true,
			CanEditContent:  true,
		}
	}
	isAdmin := role == RoleAdmin
	return Permissions{
		CanDeleteAdmins: isAdmin && canDeleteAdmins,
		CanManageUsers:  isAdmin,
		CanEditContent:  role == RoleAdmin || role == RoleEditor,
	}
}
