package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

var (
	agentFilterFields = map[string]string{
		"target_role":     "agents.target_role",
		"is_active":       "agents.is_active",
		"is_default":      "agents.is_default",
		"organization_id": "agents.organization_id",
		"tone":            "agents.tone",
	}
	agentSortFields = map[string]string{
		"name":       "agents.name",
		"created_at": "agents.created_at",
		"updated_at": "agents.updated_at",
	}
	agentSearchFields = []string{"agents.name", "agents.description"}
)

type gormAgents struct {
	db *gorm.DB
}

func (r *gormAgents) List(ctx context.Context, filter access.AgentFilter, params query.FilterParams) ([]models.Agent, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Agent{}).Scopes(filter.Scope())
	q = query.ApplyFilters(q, params.Filters, agentFilterFields)
	q = query.ApplySearch(q, params.Search, agentSearchFields)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count agents", err)
	}

	var agents []models.Agent
	q = query.ApplySort(q, params.Sort, agentSortFields)
	if err := query.ApplyPagination(q, params.Page, params.Limit).Find(&agents).Error; err != nil {
		return nil, 0, translate("list agents", err)
	}
	return agents, total, nil
}

func (r *gormAgents) Get(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, translate("get agent", err)
	}
	return &agent, nil
}

func (r *gormAgents) FindDefault(ctx context.Context, filter access.AgentFilter) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Scopes(filter.Scope()).
		Where("agents.is_default = ?", true).
		Order("agents.organization_id IS NULL").
		Order("agents.created_at ASC").
		First(&agent).Error
	if err != nil {
		return nil, translate("find default agent", err)
	}
	return &agent, nil
}

func (r *gormAgents) FindOldest(ctx context.Context, filter access.AgentFilter) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Scopes(filter.Scope()).
		Order("agents.created_at ASC").
		First(&agent).Error
	if err != nil {
		return nil, translate("find agent", err)
	}
	return &agent, nil
}

func (r *gormAgents) Create(ctx context.Context, agent *models.Agent) error {
	return translate("create agent", r.db.WithContext(ctx).Create(agent).Error)
}

func (r *gormAgents) Update(ctx context.Context, agent *models.Agent) error {
	return translate("update agent", r.db.WithContext(ctx).Save(agent).Error)
}

func (r *gormAgents) SetDefault(ctx context.Context, agent *models.Agent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		others := tx.Model(&models.Agent{}).Where("id <> ?", agent.ID)
		if agent.OrganizationID != nil {
			others = others.Where("organization_id = ?", *agent.OrganizationID)
		} else {
			others = others.Where("organization_id IS NULL")
		}
		if err := others.Update("is_default", false).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Agent{}).Where("id = ?", agent.ID).Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return translate("set default agent", err)
	}
	agent.IsDefault = true
	return nil
}

func (r *gormAgents) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "is_default": false})
	if res.Error != nil {
		return translate("deactivate agent", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("deactivate agent", gorm.ErrRecordNotFound)
	}
	return nil
}
