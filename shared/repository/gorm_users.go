package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/utils/query"
)

var (
	userFilterFields = map[string]string{
		"role":            "role",
		"status":          "status",
		"organization_id": "organization_id",
		"shop_id":         "shop_id",
	}
	userSortFields = map[string]string{
		"email":      "email",
		"first_name": "first_name",
		"last_name":  "last_name",
		"created_at": "created_at",
	}
	userSearchFields = []string{"email", "first_name", "last_name"}
)

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) List(ctx context.Context, scope UserScope, params query.FilterParams) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if scope.OrganizationID != nil {
		q = q.Where("organization_id = ?", *scope.OrganizationID)
	}
	if scope.UserID != nil {
		q = q.Where("id = ?", *scope.UserID)
	}
	q = query.ApplyFilters(q, params.Filters, userFilterFields)
	q = query.ApplySearch(q, params.Search, userSearchFields)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count users", err)
	}

	var users []models.User
	q = query.ApplySort(q, params.Sort, userSortFields)
	if err := query.ApplyPagination(q, params.Page, params.Limit).Find(&users).Error; err != nil {
		return nil, 0, translate("list users", err)
	}
	return users, total, nil
}

func (r *gormUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

func (r *gormUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "LOWER(email) = ?", strings.ToLower(email)).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &user, nil
}

func (r *gormUsers) Create(ctx context.Context, user *models.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) Update(ctx context.Context, user *models.User) error {
	return translate("update user", r.db.WithContext(ctx).Save(user).Error)
}

func (r *gormUsers) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("status", models.StatusInactive)
	if res.Error != nil {
		return translate("deactivate user", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("deactivate user", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *gormUsers) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate("touch login", r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).Update("last_login_at", at).Error)
}
