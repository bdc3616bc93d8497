// Package access decides what a signed-in user may see and change.
//
// Users carry one role string. Agents carry a target_role that says which roles
// may chat with them. Organizations scope everything except platform admins.
package access

import (
	"github.com/google/uuid"

	"agentdesk-backend/shared/database/models"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleShop    = "shop"
	RoleUser    = "user"
)

// Principal is the authenticated caller as carried by the access token.
type Principal struct {
	UserID         uuid.UUID
	Email          string
	Role           string
	OrganizationID *uuid.UUID
	ShopID         *uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsManager() bool {
	return p.Role == RoleManager
}

// InOrganization reports whether the principal belongs to orgID.
func (p Principal) InOrganization(orgID *uuid.UUID) bool {
	return p.OrganizationID != nil && orgID != nil && *p.OrganizationID == *orgID
}

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleShop, RoleUser:
		return true
	}
	return false
}

// ValidTargetRole reports whether target is one of the agent target roles.
func ValidTargetRole(target string) bool {
	switch target {
	case models.TargetRoleUser, models.TargetRoleShop, models.TargetRoleBoth, models.TargetRoleAdmin:
		return true
	}
	return false
}

// CompatibleTargetRoles lists the agent target roles a user role may use.
// Unknown roles get the same view as plain users.
func CompatibleTargetRoles(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{models.TargetRoleUser, models.TargetRoleShop, models.TargetRoleBoth, models.TargetRoleAdmin}
	case RoleManager:
		return []string{models.TargetRoleUser, models.TargetRoleShop, models.TargetRoleBoth}
	case RoleShop:
		return []string{models.TargetRoleShop, models.TargetRoleBoth}
	default:
		return []string{models.TargetRoleUser, models.TargetRoleBoth}
	}
}

// AssignableRoles lists the roles the principal may grant to other users.
func AssignableRoles(p Principal) []string {
	switch p.Role {
	case RoleAdmin:
		return []string{RoleAdmin, RoleManager, RoleShop, RoleUser}
	case RoleManager:
		return []string{RoleManager, RoleShop, RoleUser}
	default:
		return nil
	}
}

// CanAssignRole reports whether p may give role to a user.
func CanAssignRole(p Principal, role string) bool {
	for _, r := range AssignableRoles(p) {
		if r == role {
			return true
		}
	}
	return false
}

// CanManageOrganization: admins manage every organization, managers their own.
func CanManageOrganization(p Principal, orgID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.IsManager() && p.InOrganization(&orgID)
}

// CanViewOrganization: everyone sees the organization they belong to.
func CanViewOrganization(p Principal, orgID uuid.UUID) bool {
	return p.IsAdmin() || p.InOrganization(&orgID)
}

// CanManageShop follows organization management rights.
func CanManageShop(p Principal, shop *models.Shop) bool {
	return CanManageOrganization(p, shop.OrganizationID)
}

// CanViewShop: managers see the shops of their organization, shop staff and users
// only the shop they are attached to.
func CanViewShop(p Principal, shop *models.Shop) bool {
	if CanManageShop(p, shop) {
		return true
	}
	return p.ShopID != nil && *p.ShopID == shop.ID
}

// CanViewUser: admins see everyone, managers their organization, others themselves.
func CanViewUser(p Principal, u *models.User) bool {
	if p.UserID == u.ID || p.IsAdmin() {
		return true
	}
	return p.IsManager() && p.InOrganization(u.OrganizationID)
}

// CanManageUser is CanViewUser minus the ability of managers to touch platform admins.
func CanManageUser(p Principal, u *models.User) bool {
	if p.IsAdmin() {
		return true
	}
	if p.IsManager() && u.Role != RoleAdmin && p.InOrganization(u.OrganizationID) {
		return true
	}
	return false
}

// CanManageAgent: admins manage every agent, managers the agents of their organization.
// Global agents belong to admins.
func CanManageAgent(p Principal, a *models.Agent) bool {
	if p.IsAdmin() {
		return true
	}
	return p.IsManager() && p.InOrganization(a.OrganizationID) && a.TargetRole != models.TargetRoleAdmin
}
