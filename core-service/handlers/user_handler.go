package handlers

import (
	"context"
	"errors"
	"net/http"
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

type UserHandler struct {
	users repository.UserRepository
	shops repository.ShopRepository
	cache AgentCacheInvalidator
	log   *zap.Logger
}

func NewUserHandler(repos repository.Repositories, cache AgentCacheInvalidator, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{users: repos.Users, shops: repos.Shops, cache: cache, log: log}
}

// CreateUserRequest represents request body for creating user
type CreateUserRequest struct {
	Email          string     `json:"email" binding:"required" example:"jane@acme.io"`
	Password       string     `json:"password" binding:"required,min=8" example:"s3cret-pass"`
	FirstName      string     `json:"first_name" example:"Jane"`
	LastName       string     `json:"last_name" example:"Doe"`
	Role           string     `json:"role" example:"user"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	ShopID         *uuid.UUID `json:"shop_id"`
}

// UpdateUserRequest represents request body for updating user
type UpdateUserRequest struct {
	Email          *string    `json:"email"`
	Password       *string    `json:"password"`
	FirstName      *string    `json:"first_name"`
	LastName       *string    `json:"last_name"`
	Role           *string    `json:"role"`
	Status         *string    `json:"status"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	ShopID         *uuid.UUID `json:"shop_id"`
	ClearShop      bool       `json:"clear_shop"`
}

func (r UpdateUserRequest) touchesAccess() bool {
	return r.Role != nil || r.Status != nil || r.OrganizationID != nil || r.ShopID != nil || r.ClearShop
}

func userScope(p access.Principal) repository.UserScope {
	switch {
	case p.IsAdmin():
		return repository.UserScope{}
	case p.IsManager() && p.OrganizationID != nil:
		return repository.UserScope{OrganizationID: p.OrganizationID}
	default:
		return repository.UserScope{UserID: &p.UserID}
	}
}

// GetUsers lists the users visible to the caller
// @Summary Get users
// @Description Admins list everyone, managers their organization, others themselves
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 10)"
// @Param search query string false "Search term across email and names"
// @Param filters[role] query string false "Filter by role"
// @Param filters[status] query string false "Filter by status"
// @Param filters[organization_id] query string false "Filter by organization ID"
// @Param filters[shop_id] query string false "Filter by shop ID"
// @Param sort[field] query string false "Sort field (email, first_name, last_name, created_at)"
// @Param sort[order] query string false "Sort order (asc, desc)"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /users [get]
func (h *UserHandler) GetUsers(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c)

	users, total, err := h.users.List(c.Request.Context(), userScope(p), params)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}
	response.Paginated(c, users, params, total)
}

// GetUser retrieves a single user by ID
// @Summary Get user by ID
// @Tags users
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}
	if !access.CanViewUser(p, user) {
		notFound(c, "User")
		return
	}
	response.OK(c, user)
}

// CreateUser creates a new user
// @Summary Create user
// @Description Managers create users inside their own organization and cannot grant admin
// @Tags users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User data"
// @Security BearerAuth
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 409 {object} map[string]string "Email already in use"
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	role := req.Role
	if role == "" {
		role = access.RoleUser
	}
	if !access.ValidRole(role) {
		response.BadRequest(c, "role must be admin, manager, shop or user")
		return
	}
	if !access.CanAssignRole(p, role) {
		forbidden(c, "You cannot create users with this role")
		return
	}

	orgID := req.OrganizationID
	if p.IsManager() {
		if p.OrganizationID == nil {
			forbidden(c, "You are not attached to an organization")
			return
		}
		orgID = p.OrganizationID
	}
	if orgID == nil && (role == access.RoleManager || role == access.RoleShop) {
		response.BadRequest(c, "organization_id is required for managers and shop staff")
		return
	}

	user := &models.User{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           role,
		Status:         models.StatusActive,
		OrganizationID: orgID,
		ShopID:         req.ShopID,
	}
	if err := auth.ValidateEmail(user.Email); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.checkShop(ctx, user); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Could not hash password", err.Error())
		return
	}
	user.Password = hash

	if err := h.users.Create(ctx, user); err != nil {
		response.ServiceError(c, err, "User")
		return
	}

	h.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", user.Role), zap.String("by", p.UserID.String()))
	response.Created(c, user, "User created successfully")
}

// UpdateUser updates a user
// @Summary Update user
// @Description Users may change their own names, email and password. Role, status,
// @Description organization and shop changes need management rights.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Param user body UpdateUserRequest true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}
	if !access.CanViewUser(p, user) {
		notFound(c, "User")
		return
	}

	self := p.UserID == user.ID
	manage := access.CanManageUser(p, user)
	if !manage && !self {
		forbidden(c, "You cannot modify this user")
		return
	}
	if req.touchesAccess() && (!manage || (self && !p.IsAdmin())) {
		forbidden(c, "You cannot change role, status, organization or shop of this user")
		return
	}

	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		if err := auth.ValidateEmail(user.Email); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		if !access.ValidRole(*req.Role) {
			response.BadRequest(c, "role must be admin, manager, shop or user")
			return
		}
		if !access.CanAssignRole(p, *req.Role) {
			forbidden(c, "You cannot assign this role")
			return
		}
		user.Role = *req.Role
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			response.BadRequest(c, "status must be ACTIVE or INACTIVE")
			return
		}
		user.Status = *req.Status
	}
	if req.OrganizationID != nil {
		if !access.CanManageOrganization(p, *req.OrganizationID) {
			forbidden(c, "You cannot move users to this organization")
			return
		}
		if user.OrganizationID == nil || *user.OrganizationID != *req.OrganizationID {
			user.ShopID = nil
		}
		user.OrganizationID = req.OrganizationID
	}
	if req.ClearShop {
		user.ShopID = nil
	} else if req.ShopID != nil {
		user.ShopID = req.ShopID
	}
	if err := h.checkShop(ctx, user); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Password != nil {
		if err := auth.ValidateLength(*req.Password, "password", 8, 128); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "Could not hash password", err.Error())
			return
		}
		user.Password = hash
	}

	if err := h.users.Update(ctx, user); err != nil {
		response.ServiceError(c, err, "User")
		return
	}
	if req.touchesAccess() {
		if err := h.cache.InvalidatePreferredAgent(ctx, user.ID); err != nil {
			h.log.Warn("failed to invalidate preferred agent", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}
	response.Message(c, "User updated successfully", user)
}

// DeleteUser deactivates a user
// @Summary Delete user
// @Tags users
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "user")
	if !ok {
		return
	}
	if id == p.UserID {
		response.BadRequest(c, "You cannot delete your own account")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.Get(ctx, id)
	if err != nil {
		response.ServiceError(c, err, "User")
		return
	}
	if !access.CanViewUser(p, user) {
		notFound(c, "User")
		return
	}
	if !access.CanManageUser(p, user) {
		forbidden(c, "You cannot delete this user")
		return
	}

	if err := h.users.Deactivate(ctx, id); err != nil {
		response.ServiceError(c, err, "User")
		return
	}

	h.log.Info("user deactivated", zap.String("user_id", id.String()), zap.String("by", p.UserID.String()))
	response.Message(c, "User deleted successfully", nil)
}

// checkShop verifies that an attached shop belongs to the user's organization.
func (h *UserHandler) checkShop(ctx context.Context, user *models.User) error {
	if user.ShopID == nil {
		return nil
	}
	if user.OrganizationID == nil {
		return errors.New("shop_id requires organization_id")
	}
	shop, err := h.shops.Get(ctx, *user.ShopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errors.New("shop_id does not reference a shop")
		}
		return err
	}
	if shop.OrganizationID != *user.OrganizationID {
		return errors.New("shop does not belong to the user's organization")
	}
	if !shop.IsActive {
		return errors.New("shop is inactive")
	}
	return nil
}
