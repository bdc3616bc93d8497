package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

var (
	organizationFilterFields = map[string]string{
		"status": "status",
		"slug":   "slug",
	}
	organizationSortFields = map[string]string{
		"name":       "name",
		"slug":       "slug",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	organizationSearchFields = []string{"name", "slug", "contact_email"}
)

type gormOrganizations struct {
	db *gorm.DB
}

func (r *gormOrganizations) List(ctx context.Context, params query.FilterParams, onlyID *uuid.UUID) ([]models.Organization, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Organization{})
	if onlyID != nil {
		q = q.Where("id = ?", *onlyID)
	}
	q = query.ApplyFilters(q, params.Filters, organizationFilterFields)
	q = query.ApplySearch(q, params.Search, organizationSearchFields)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count organizations", err)
	}

	var orgs []models.Organization
	q = query.ApplySort(q, params.Sort, organizationSortFields)
	if err := query.ApplyPagination(q, params.Page, params.Limit).Find(&orgs).Error; err != nil {
		return nil, 0, translate("list organizations", err)
	}
	return orgs, total, nil
}

func (r *gormOrganizations) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, translate("get organization", err)
	}
	return &org, nil
}

func (r *gormOrganizations) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error; err != nil {
		return nil, translate("get organization by slug", err)
	}
	return &org, nil
}

func (r *gormOrganizations) Create(ctx context.Context, org *models.Organization) error {
	return translate("create organization", r.db.WithContext(ctx).Create(org).Error)
}

func (r *gormOrganizations) Update(ctx context.Context, org *models.Organization) error {
	return translate("update organization", r.db.WithContext(ctx).Save(org).Error)
}

func (r *gormOrganizations) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Organization{}).Where("id = ?", id).Update("status", models.StatusInactive)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Model(&models.Shop{}).Where("organization_id = ?", id).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Agent{}).Where("organization_id = ?", id).
			Updates(map[string]interface{}{"is_active": false, "is_default": false}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("organization_id = ?", id).
			Update("status", models.StatusInactive).Error
	})
	return translate("deactivate organization", err)
}
