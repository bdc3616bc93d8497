package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/query"
	"agentdesk-backend/shared/utils/response"
)

type AgentHandler struct {
	agents *services.AgentService
}

func NewAgentHandler(agents *services.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

func principal(c *gin.Context) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Unauthorized", "Authentication required")
	}
	return p, ok
}

func agentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid agent ID format", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// GetAgents lists agents visible to the caller
// @Summary Get agents
// @Description Admins see every agent. Managers see their organization's and global agents.
// @Description Shop staff and users only see active agents targeted at their role.
// @Tags agents
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 10)"
// @Param search query string false "Search term across name and description"
// @Param filters[target_role] query string false "Filter by target role (user, shop, both, admin)"
// @Param filters[is_active] query bool false "Filter by active flag"
// @Param filters[organization_id] query string false "Filter by organization ID"
// @Param sort[field] query string false "Sort field (name, created_at, updated_at)"
// @Param sort[order] query string false "Sort order (asc, desc)"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /agents [get]
func (h *AgentHandler) GetAgents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := query.ParseQueryParams(c)

	agents, total, err := h.agents.List(c.Request.Context(), p, params)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Paginated(c, agents, params, total)
}

// GetAgent retrieves one agent
// @Summary Get agent by ID
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} models.Agent
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id} [get]
func (h *AgentHandler) GetAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	agent, err := h.agents.Get(c.Request.Context(), p, id)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.OK(c, agent)
}

// GetPreferredAgent resolves the agent the caller chats with by default
// @Summary Get preferred agent
// @Description Saved preference, else the organization default, else the oldest usable agent
// @Tags agents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Agent
// @Failure 404 {object} map[string]string "No agent available"
// @Router /agents/preferred [get]
func (h *AgentHandler) GetPreferredAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	agent, err := h.agents.Preferred(c.Request.Context(), p)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.OK(c, agent)
}

// CreateAgent creates an agent
// @Summary Create agent
// @Description Admins and managers. Manager agents always belong to the manager's organization.
// @Tags agents
// @Accept json
// @Produce json
// @Param agent body services.AgentInput true "Agent data"
// @Security BearerAuth
// @Success 201 {object} models.Agent
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 403 {object} map[string]string "Permission denied"
// @Router /agents [post]
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req services.AgentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	agent, err := h.agents.Create(c.Request.Context(), p, req)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Created(c, agent, "Agent created successfully")
}

// UpdateAgent changes an agent
// @Summary Update agent
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Param agent body services.AgentInput true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.Agent
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id} [put]
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	var req services.AgentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	agent, err := h.agents.Update(c.Request.Context(), p, id, req)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Message(c, "Agent updated successfully", agent)
}

// DeleteAgent deactivates an agent
// @Summary Delete agent
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id} [delete]
func (h *AgentHandler) DeleteAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	if err := h.agents.Delete(c.Request.Context(), p, id); err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Message(c, "Agent deleted successfully", nil)
}

// SetDefaultAgent makes an agent the default of its organization
// @Summary Set default agent
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} models.Agent
// @Failure 400 {object} map[string]string "Agent is inactive"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id}/default [put]
func (h *AgentHandler) SetDefaultAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	agent, err := h.agents.SetDefault(c.Request.Context(), p, id)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Message(c, "Default agent updated", agent)
}

// DuplicateAgent copies an agent
// @Summary Duplicate agent
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Security BearerAuth
// @Success 201 {object} models.Agent
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id}/duplicate [post]
func (h *AgentHandler) DuplicateAgent(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	agent, err := h.agents.Duplicate(c.Request.Context(), p, id)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Created(c, agent, "Agent duplicated successfully")
}

// UploadAvatar stores a new avatar image
// @Summary Upload agent avatar
// @Tags agents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Agent ID" format(uuid)
// @Param file formData file true "Avatar image"
// @Security BearerAuth
// @Success 200 {object} models.Agent
// @Failure 400 {object} map[string]string "Invalid file"
// @Failure 403 {object} map[string]string "Permission denied"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /agents/{id}/avatar [post]
func (h *AgentHandler) UploadAvatar(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "File is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	agent, err := h.agents.UploadAvatar(c.Request.Context(), p, id, header.Filename, header.Size, contentType, file)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Message(c, "Avatar uploaded successfully", agent)
}

// GetAvatar streams the avatar of a visible agent
// @Summary Get agent avatar
// @Tags agents
// @Produce octet-stream
// @Param id path string true "Agent ID" format(uuid)
// @Security BearerAuth
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string "Avatar not found"
// @Router /agents/{id}/avatar [get]
func (h *AgentHandler) GetAvatar(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := agentID(c)
	if !ok {
		return
	}

	obj, err := h.agents.Avatar(c.Request.Context(), p, id)
	if err != nil {
		response.ServiceError(c, err, "Avatar")
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}
