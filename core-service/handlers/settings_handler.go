package handlers

import (
	"github.com/gin-gonic/gin"

	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/response"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings returns the caller's settings
// @Summary Get settings
// @Description Defaults are created on first access
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Setting
// @Router /settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	setting, err := h.settings.Get(c.Request.Context(), p)
	if err != nil {
		response.ServiceError(c, err, "Settings")
		return
	}
	response.OK(c, setting)
}

// UpdateSettings changes the caller's settings
// @Summary Update settings
// @Description Partial update. preferred_agent_id must reference an agent the caller can chat with.
// @Tags settings
// @Accept json
// @Produce json
// @Param settings body services.SettingsInput true "Fields to change"
// @Security BearerAuth
// @Success 200 {object} models.Setting
// @Failure 400 {object} map[string]string "Validation failed"
// @Router /settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req services.SettingsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	setting, err := h.settings.Update(c.Request.Context(), p, req)
	if err != nil {
		response.ServiceError(c, err, "Settings")
		return
	}
	response.Message(c, "Settings updated successfully", setting)
}
