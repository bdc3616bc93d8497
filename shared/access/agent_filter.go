package access

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/database/models"
)

// AgentFilter describes which agents a principal may see. It is applied both to
// SQL queries and to already loaded rows, and the two paths must agree.
type AgentFilter struct {
	AllOrganizations bool
	OrganizationID   *uuid.UUID
	IncludeGlobal    bool
	TargetRoles      []string
	ActiveOnly       bool
}

// AgentFilterFor builds the visibility filter for p.
func AgentFilterFor(p Principal) AgentFilter {
	f := AgentFilter{
		IncludeGlobal: true,
		TargetRoles:   CompatibleTargetRoles(p.Role),
	}

	switch p.Role {
	case RoleAdmin:
		f.AllOrganizations = true
	case RoleManager:
		f.OrganizationID = p.OrganizationID
	default:
		f.OrganizationID = p.OrganizationID
		f.ActiveOnly = true
	}

	return f
}

// Usable narrows the filter to agents a principal can actually chat with.
func (f AgentFilter) Usable() AgentFilter {
	f.ActiveOnly = true
	return f
}

// Apply adds the filter to a query over the agents table.
func (f AgentFilter) Apply(db *gorm.DB) *gorm.DB {
	if !f.AllOrganizations {
		switch {
		case f.OrganizationID != nil && f.IncludeGlobal:
			db = db.Where("(agents.organization_id = ? OR agents.organization_id IS NULL)", *f.OrganizationID)
		case f.OrganizationID != nil:
			db = db.Where("agents.organization_id = ?", *f.OrganizationID)
		case f.IncludeGlobal:
			db = db.Where("agents.organization_id IS NULL")
		default:
			db = db.Where("1 = 0")
		}
	}

	if len(f.TargetRoles) > 0 {
		db = db.Where("agents.target_role IN ?", f.TargetRoles)
	}

	if f.ActiveOnly {
		db = db.Where("agents.is_active = ?", true)
	}

	return db
}

// Scope returns Apply as a gorm scope.
func (f AgentFilter) Scope() func(*gorm.DB) *gorm.DB {
	return f.Apply
}

// Matches reports whether an agent passes the filter.
func (f AgentFilter) Matches(a *models.Agent) bool {
	if a == nil {
		return false
	}

	if !f.AllOrganizations {
		switch {
		case a.OrganizationID == nil:
			if !f.IncludeGlobal {
				return false
			}
		case f.OrganizationID == nil || *a.OrganizationID != *f.OrganizationID:
			return false
		}
	}

	if len(f.TargetRoles) > 0 && !contains(f.TargetRoles, a.TargetRole) {
		return false
	}

	if f.ActiveOnly && !a.IsActive {
		return false
	}

	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
