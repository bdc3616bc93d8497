package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/utils/response"
)

// parseID reads the :id path parameter and answers 400 when it is not a uuid.
func parseID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid "+resource+" ID format", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func principal(c *gin.Context) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Unauthorized", "Authentication required")
	}
	return p, ok
}

func forbidden(c *gin.Context, message string) {
	response.Error(c, http.StatusForbidden, "Permission denied", message)
}

func notFound(c *gin.Context, resource string) {
	response.Error(c, http.StatusNotFound, resource+" not found", "The requested "+resource+" does not exist")
}
