// Package response writes the JSON bodies every service returns.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/query"
)

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func Created(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data, "message": message})
}

// Message answers with a message and optional data.
func Message(c *gin.Context, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

// Paginated answers a list request.
func Paginated(c *gin.Context, items interface{}, params query.FilterParams, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       items,
		"pagination": query.BuildPaginationResponse(params.Page, params.Limit, total),
	})
}

func Error(c *gin.Context, status int, errText, message string) {
	c.JSON(status, gin.H{"error": errText, "message": message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "Invalid request", message)
}

// ServiceError maps service and repository errors onto HTTP statuses.
func ServiceError(c *gin.Context, err error, resource string) {
	if v, ok := services.IsValidation(err); ok {
		Error(c, http.StatusBadRequest, "Validation failed", v.Error())
		return
	}

	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		Error(c, http.StatusNotFound, resource+" not found", "The requested "+resource+" does not exist")
	case errors.Is(err, services.ErrForbidden):
		Error(c, http.StatusForbidden, "Permission denied", "You are not allowed to perform this action")
	case errors.Is(err, repository.ErrConflict):
		Error(c, http.StatusConflict, resource+" already exists", err.Error())
	default:
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		Error(c, http.StatusInternalServerError, "Internal server error", "Unexpected error while processing "+resource)
	}
}
