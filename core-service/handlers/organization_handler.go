package handlers

import (
	"context"
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

// AgentCacheInvalidator drops cached preferred agents.
type AgentCacheInvalidator interface {
	InvalidatePreferredAgent(ctx context.Context, userID uuid.UUID) error
	InvalidateAllPreferredAgents(ctx context.Context) error
}

type OrganizationHandler struct {
	organizations repository.OrganizationRepository
	cache         AgentCacheInvalidator
	log           *zap.Logger
}

func NewOrganizationHandler(repos repository.Repositories, cache AgentCacheInvalidator, log *zap.Logger) *OrganizationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrganizationHandler{organizations: repos.Organizations, cache: cache, log: log}
}

// CreateOrganizationRequest represents request body for creating organization
type CreateOrganizationRequest struct {
	Name         string  `json:"name" binding:"required" example:"Acme Retail"`
	Slug         string  `json:"slug" example:"acme-retail"`
	Status       string  `json:"status" example:"ACTIVE"`
	ContactEmail string  `json:"contact_email" example:"ops@acme.io"`
	WebhookURL   *string `json:"webhook_url"`
}

// UpdateOrganizationRequest represents request body for updating organization
type UpdateOrganizationRequest struct {
	Name         *string `json:"name"`
	Slug         *string `json:"slug"`
	Status       *string `json:"status"`
	ContactEmail *string `json:"contact_email"`
	WebhookURL   *string `json:"webhook_url"`
}

func validStatus(status string) bool {
	return status == models.StatusActive || status == models.StatusInactive
}

// GetOrganizations lists the organizations visible to the caller
// @Summary Get organizations
// @Description Admins list every organization, everyone else only their own
// @Tags organizations
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 10)"
// @Param search query string false "Search term across name, slug and contact email"
// @Param filters[status] query string false "Filter by status (ACTIVE, INACTIVE)"
// @Param sort[field] query string false "Sort field (name, slug, created_at, updated_at)"
// @Param sort[order] query string false "Sort order (asc, desc)"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /organizations [get]
func (h *OrganizationHandler) GetOrganizations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c)

	var onlyID *uuid.UUID
	if !p.IsAdmin() {
		if p.OrganizationID == nil {
			response.Paginated(c, []models.Organization{}, params, 0)
			return
		}
		onlyID = p.OrganizationID
	}

	orgs, total, err := h.organizations.List(c.Request.Context(), params, onlyID)
	if err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}
	response.Paginated(c, orgs, params, total)
}

// GetOrganization retrieves a single organization by ID
// @Summary Get organization by ID
// @Tags organizations
// @Produce json
// @Param id path string true "Organization ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} models.Organization
// @Failure 400 {object} map[string]string "Invalid organization ID format"
// @Failure 404 {object} map[string]string "Organization not found"
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "organization")
	if !ok {
		return
	}

	org, err := h.organizations.Get(c.Request.Context(), id)
	if err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}
	if !access.CanViewOrganization(p, org.ID) {
		notFound(c, "Organization")
		return
	}
	response.OK(c, org)
}

// CreateOrganization creates a new organization
// @Summary Create organization
// @Description Platform admins only. The slug is derived from the name when omitted.
// @Tags organizations
// @Accept json
// @Produce json
// @Param organization body CreateOrganizationRequest true "Organization data"
// @Security BearerAuth
// @Success 201 {object} models.Organization
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 409 {object} map[string]string "Slug already in use"
// @Router /organizations [post]
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		forbidden(c, "Only platform admins can create organizations")
		return
	}

	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	org := &models.Organization{
		Name:         strings.TrimSpace(req.Name),
		Slug:         strings.TrimSpace(req.Slug),
		Status:       req.Status,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		WebhookURL:   req.WebhookURL,
	}
	if org.Slug == "" {
		org.Slug = auth.Slugify(org.Name)
	}
	if org.Status == "" {
		org.Status = models.StatusActive
	}
	if err := validateOrganization(org); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.organizations.Create(c.Request.Context(), org); err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}

	h.log.Info("organization created", zap.String("organization_id", org.ID.String()), zap.String("slug", org.Slug))
	response.Created(c, org, "Organization created successfully")
}

// UpdateOrganization updates an organization
// @Summary Update organization
// @Description Admins or the organization's managers. Only admins change the status.
// @Tags organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID" format(uuid)
// @Param organization body UpdateOrganizationRequest true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.Organization
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Organization not found"
// @Failure 409 {object} map[string]string "Slug already in use"
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "organization")
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	org, err := h.organizations.Get(ctx, id)
	if err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}
	if !access.CanViewOrganization(p, org.ID) {
		notFound(c, "Organization")
		return
	}
	if !access.CanManageOrganization(p, org.ID) {
		forbidden(c, "You cannot modify this organization")
		return
	}
	if req.Status != nil && !p.IsAdmin() {
		forbidden(c, "Only platform admins can change the organization status")
		return
	}

	if req.Name != nil {
		org.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		org.Slug = strings.TrimSpace(*req.Slug)
	}
	if req.Status != nil {
		org.Status = *req.Status
	}
	if req.ContactEmail != nil {
		org.ContactEmail = strings.TrimSpace(*req.ContactEmail)
	}
	if req.WebhookURL != nil {
		if *req.WebhookURL == "" {
			org.WebhookURL = nil
		} else {
			org.WebhookURL = req.WebhookURL
		}
	}
	if err := validateOrganization(org); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.organizations.Update(ctx, org); err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}
	response.Message(c, "Organization updated successfully", org)
}

// DeleteOrganization deactivates an organization with its shops, agents and users
// @Summary Delete organization
// @Tags organizations
// @Produce json
// @Param id path string true "Organization ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Organization not found"
// @Router /organizations/{id} [delete]
func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		forbidden(c, "Only platform admins can delete organizations")
		return
	}
	id, ok := parseID(c, "organization")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.organizations.Deactivate(ctx, id); err != nil {
		response.ServiceError(c, err, "Organization")
		return
	}
	if err := h.cache.InvalidateAllPreferredAgents(ctx); err != nil {
		h.log.Warn("failed to invalidate preferred agents", zap.Error(err))
	}

	h.log.Info("organization deactivated", zap.String("organization_id", id.String()), zap.String("by", p.UserID.String()))
	response.Message(c, "Organization deleted successfully", nil)
}

func validateOrganization(org *models.Organization) error {
	if err := auth.ValidateLength(org.Name, "name", 2, 200); err != nil {
		return err
	}
	if err := auth.ValidateSlug(org.Slug); err != nil {
		return err
	}
	if !validStatus(org.Status) {
		return errors.New("status must be ACTIVE or INACTIVE")
	}
	if org.ContactEmail != "" {
		if err := auth.ValidateEmail(org.ContactEmail); err != nil {
			return err
		}
	}
	return nil
}
