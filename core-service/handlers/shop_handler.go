package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/query"
	"agentdesk-backend/shared/utils/response"
)

type ShopHandler struct {
	shops         repository.ShopRepository
	organizations repository.OrganizationRepository
	log           *zap.Logger
}

func NewShopHandler(repos repository.Repositories, log *zap.Logger) *ShopHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShopHandler{shops: repos.Shops, organizations: repos.Organizations, log: log}
}

type CreateShopRequest struct {
	OrganizationID *uuid.UUID `json:"organization_id"`
	Name           string     `json:"name" binding:"required" example:"Downtown"`
	Slug           string     `json:"slug" example:"downtown"`
	Address        string     `json:"address"`
	Phone          string     `json:"phone" example:"+1 555 0100"`
	Email          string     `json:"email"`
}

type UpdateShopRequest struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"is_active"`
}

// shopScope narrows listings: managers see their organization, staff and users their shop.
func shopScope(p access.Principal) (repository.ShopScope, bool) {
	switch {
	case p.IsAdmin():
		return repository.ShopScope{}, true
	case p.IsManager() && p.OrganizationID != nil:
		return repository.ShopScope{OrganizationID: p.OrganizationID}, true
	case p.ShopID != nil:
		return repository.ShopScope{ShopID: p.ShopID}, true
	default:
		return repository.ShopScope{}, false
	}
}

// GetShops lists the shops visible to the caller
// @Summary Get shops
// @Tags shops
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 10)"
// @Param search query string false "Search term across name, slug and address"
// @Param filters[organization_id] query string false "Filter by organization ID"
// @Param filters[is_active] query bool false "Filter by active flag"
// @Param sort[field] query string false "Sort field (name, created_at, updated_at)"
// @Param sort[order] query string false "Sort order (asc, desc)"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /shops [get]
func (h *ShopHandler) GetShops(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c)

	scope, ok := shopScope(p)
	if !ok {
		response.Paginated(c, []models.Shop{}, params, 0)
		return
	}

	shops, total, err := h.shops.List(c.Request.Context(), scope, params)
	if err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}
	response.Paginated(c, shops, params, total)
}

// GetShop retrieves a single shop by ID
// @Summary Get shop by ID
// @Tags shops
// @Produce json
// @Param id path string true "Shop ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} models.Shop
// @Failure 404 {object} map[string]string "Shop not found"
// @Router /shops/{id} [get]
func (h *ShopHandler) GetShop(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "shop")
	if !ok {
		return
	}

	shop, err := h.shops.Get(c.Request.Context(), id)
	if err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}
	if !access.CanViewShop(p, shop) {
		notFound(c, "Shop")
		return
	}
	response.OK(c, shop)
}

// CreateShop creates a shop inside an organization
// @Summary Create shop
// @Description Managers always create shops in their own organization
// @Tags shops
// @Accept json
// @Produce json
// @Param shop body CreateShopRequest true "Shop data"
// @Security BearerAuth
// @Success 201 {object} models.Shop
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 409 {object} map[string]string "Slug already in use"
// @Router /shops [post]
func (h *ShopHandler) CreateShop(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CreateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	orgID := req.OrganizationID
	if p.IsManager() {
		orgID = p.OrganizationID
	}
	if orgID == nil {
		if p.IsAdmin() {
			response.BadRequest(c, "organization_id is required")
		} else {
			forbidden(c, "You cannot create shops")
		}
		return
	}
	if !access.CanManageOrganization(p, *orgID) {
		forbidden(c, "You cannot create shops in this organization")
		return
	}

	ctx := c.Request.Context()
	org, err := h.organizations.Get(ctx, *orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			response.BadRequest(c, "organization_id does not reference an organization")
			return
		}
		response.ServiceError(c, err, "Organization")
		return
	}
	if org.Status != models.StatusActive {
		response.BadRequest(c, "organization is inactive")
		return
	}

	shop := &models.Shop{
		OrganizationID: org.ID,
		Name:           strings.TrimSpace(req.Name),
		Slug:           strings.TrimSpace(req.Slug),
		Address:        strings.TrimSpace(req.Address),
		Phone:          strings.TrimSpace(req.Phone),
		Email:          strings.TrimSpace(req.Email),
		IsActive:       true,
	}
	if shop.Slug == "" {
		shop.Slug = auth.Slugify(shop.Name)
	}
	if err := validateShop(shop); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.shops.Create(ctx, shop); err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}

	h.log.Info("shop created", zap.String("shop_id", shop.ID.String()), zap.String("organization_id", org.ID.String()))
	response.Created(c, shop, "Shop created successfully")
}

// UpdateShop updates a shop
// @Summary Update shop
// @Tags shops
// @Accept json
// @Produce json
// @Param id path string true "Shop ID" format(uuid)
// @Param shop body UpdateShopRequest true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.Shop
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Shop not found"
// @Router /shops/{id} [put]
func (h *ShopHandler) UpdateShop(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "shop")
	if !ok {
		return
	}

	var req UpdateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	shop, err := h.shops.Get(ctx, id)
	if err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}
	if !access.CanViewShop(p, shop) {
		notFound(c, "Shop")
		return
	}
	if !access.CanManageShop(p, shop) {
		forbidden(c, "You cannot modify this shop")
		return
	}

	if req.Name != nil {
		shop.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		shop.Slug = strings.TrimSpace(*req.Slug)
	}
	if req.Address != nil {
		shop.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		shop.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		shop.Email = strings.TrimSpace(*req.Email)
	}
	if req.IsActive != nil {
		shop.IsActive = *req.IsActive
	}
	if err := validateShop(shop); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.shops.Update(ctx, shop); err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}
	response.Message(c, "Shop updated successfully", shop)
}

// DeleteShop deactivates a shop and detaches its users
// @Summary Delete shop
// @Tags shops
// @Produce json
// @Param id path string true "Shop ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Shop not found"
// @Router /shops/{id} [delete]
func (h *ShopHandler) DeleteShop(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "shop")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	shop, err := h.shops.Get(ctx, id)
	if err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}
	if !access.CanViewShop(p, shop) {
		notFound(c, "Shop")
		return
	}
	if !access.CanManageShop(p, shop) {
		forbidden(c, "You cannot delete this shop")
		return
	}

	if err := h.shops.Deactivate(ctx, id); err != nil {
		response.ServiceError(c, err, "Shop")
		return
	}

	h.log.Info("shop deactivated", zap.String("shop_id", id.String()), zap.String("by", p.UserID.String()))
	response.Message(c, "Shop deleted successfully", nil)
}

func validateShop(shop *models.Shop) error {
	if err := auth.ValidateLength(shop.Name, "name", 2, 200); err != nil {
		return err
	}
	if err := auth.ValidateSlug(shop.Slug); err != nil {
		return err
	}
	if err := auth.ValidatePhone(shop.Phone); err != nil {
		return err
	}
	if shop.Email != "" {
		if err := auth.ValidateEmail(shop.Email); err != nil {
			return err
		}
	}
	return nil
}
