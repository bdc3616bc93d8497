package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

var (
	shopFilterFields = map[string]string{
		"organization_id": "organization_id",
		"is_active":       "is_active",
	}
	shopSortFields = map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	shopSearchFields = []string{"name", "slug", "address"}
)

type gormShops struct {
	db *gorm.DB
}

func (r *gormShops) List(ctx context.Context, scope ShopScope, params query.FilterParams) ([]models.Shop, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Shop{})
	if scope.OrganizationID != nil {
		q = q.Where("organization_id = ?", *scope.OrganizationID)
	}
	if scope.ShopID != nil {
		q = q.Where("id = ?", *scope.ShopID)
	}
	q = query.ApplyFilters(q, params.Filters, shopFilterFields)
	q = query.ApplySearch(q, params.Search, shopSearchFields)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count shops", err)
	}

	var shops []models.Shop
	q = query.ApplySort(q, params.Sort, shopSortFields)
	if err := query.ApplyPagination(q, params.Page, params.Limit).Find(&shops).Error; err != nil {
		return nil, 0, translate("list shops", err)
	}
	return shops, total, nil
}

func (r *gormShops) Get(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, translate("get shop", err)
	}
	return &shop, nil
}

func (r *gormShops) Create(ctx context.Context, shop *models.Shop) error {
	return translate("create shop", r.db.WithContext(ctx).Create(shop).Error)
}

func (r *gormShops) Update(ctx context.Context, shop *models.Shop) error {
	return translate("update shop", r.db.WithContext(ctx).Omit("Organization").Save(shop).Error)
}

func (r *gormShops) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Shop{}).Where("id = ?", id).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.User{}).Where("shop_id = ?", id).Update("shop_id", nil).Error
	})
	return translate("deactivate shop", err)
}
