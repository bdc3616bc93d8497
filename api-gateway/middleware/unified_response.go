package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/shared/middleware"
)

const RequestIDHeader = "X-Request-ID"

// UnifiedResponse represents the standard API response format
type UnifiedResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
	Meta       *MetaInfo   `json:"meta"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID     string `json:"request_id"`
	Timestamp     string `json:"timestamp"`
	ExecutionTime string `json:"execution_time"`
	Method        string `json:"method"`
	Path          string `json:"path"`
}

// bufferedWriter holds the upstream response until it has been rewritten.
type bufferedWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferedWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.body.Len() > 0
}

func (w *bufferedWriter) Flush() {}

// RequestID reuses the caller's X-Request-ID or assigns one, and forwards it upstream.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// UnifiedResponseMiddleware rewrites JSON responses into the gateway envelope
// and logs one line per request.
func UnifiedResponseMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		startTime := time.Now()

		if shouldSkipUnifiedResponse(c) {
			c.Next()
			logRequest(log, c, c.Writer.Status(), time.Since(startTime))
			return
		}

		original := c.Writer
		w := &bufferedWriter{ResponseWriter: original, status: http.StatusOK}
		c.Writer = w

		c.Next()

		c.Writer = original
		executionTime := time.Since(startTime)

		header := original.Header()
		if w.status == http.StatusNoContent || w.status == http.StatusNotModified {
			original.WriteHeader(w.status)
			logRequest(log, c, w.status, executionTime)
			return
		}
		if w.body.Len() > 0 && !strings.Contains(header.Get("Content-Type"), "json") {
			original.WriteHeader(w.status)
			original.Write(w.body.Bytes())
			logRequest(log, c, w.status, executionTime)
			return
		}

		unified := transformToUnifiedResponse(c, w.body.Bytes(), w.status, executionTime)
		payload, err := json.Marshal(unified)
		if err != nil {
			log.Error("failed to encode unified response", zap.Error(err))
			payload = w.body.Bytes()
		}

		header.Del("Content-Length")
		header.Set("Content-Type", "application/json; charset=utf-8")
		original.WriteHeader(w.status)
		original.Write(payload)

		logRequest(log, c, w.status, executionTime)
	}
}

func logRequest(log *zap.Logger, c *gin.Context, status int, latency time.Duration) {
	fields := []zap.Field{
		zap.String("request_id", c.GetString("request_id")),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("ip", c.ClientIP()),
	}
	if p, ok := middleware.GetPrincipal(c); ok {
		fields = append(fields, zap.String("user_id", p.UserID.String()))
	}

	switch {
	case status >= 500:
		log.Error("gateway request", fields...)
	case status >= 400:
		log.Warn("gateway request", fields...)
	default:
		log.Info("gateway request", fields...)
	}
}

// transformToUnifiedResponse converts original response to unified format
func transformToUnifiedResponse(c *gin.Context, body []byte, statusCode int, executionTime time.Duration) UnifiedResponse {
	isSuccess := statusCode >= 200 && statusCode < 300

	unified := UnifiedResponse{
		Success: isSuccess,
		Message: getAutoMessage(c.Request.Method, statusCode, isSuccess),
		Meta: &MetaInfo{
			RequestID:     c.GetString("request_id"),
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			ExecutionTime: fmt.Sprintf("%dms", executionTime.Milliseconds()),
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
		},
	}
	if !isSuccess {
		unified.Error = &ErrorInfo{Code: getErrorCode(statusCode), Details: http.StatusText(statusCode)}
	}

	if len(body) == 0 {
		return unified
	}

	var original interface{}
	if err := json.Unmarshal(body, &original); err != nil {
		if !isSuccess {
			unified.Error.Details = string(body)
		}
		return unified
	}

	fields, ok := original.(map[string]interface{})
	if !ok {
		if isSuccess {
			unified.Data = original
		}
		return unified
	}

	if msg, ok := fields["message"].(string); ok && msg != "" {
		unified.Message = msg
	}
	if data, exists := fields["data"]; exists {
		unified.Data = data
	} else if isSuccess {
		delete(fields, "success")
		delete(fields, "message")
		if len(fields) > 0 {
			unified.Data = fields
		}
	}
	if pagination, exists := fields["pagination"]; exists {
		unified.Pagination = pagination
	}
	if !isSuccess {
		if errText, ok := fields["error"].(string); ok && errText != "" {
			unified.Error.Details = errText
		}
	}
	return unified
}

// getAutoMessage generates appropriate success/error messages
func getAutoMessage(method string, statusCode int, isSuccess bool) string {
	if isSuccess {
		switch method {
		case http.MethodPost:
			return "Record created successfully"
		case http.MethodPut, http.MethodPatch:
			return "Record updated successfully"
		case http.MethodDelete:
			return "Record deleted successfully"
		case http.MethodGet:
			return "Data retrieved successfully"
		default:
			return "Operation completed successfully"
		}
	}

	switch statusCode {
	case http.StatusBadRequest:
		return "Invalid request data"
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusForbidden:
		return "Permission denied"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusConflict:
		return "Resource already exists"
	case http.StatusUnprocessableEntity:
		return "Validation failed"
	case http.StatusTooManyRequests:
		return "Too many requests"
	case http.StatusBadGateway:
		return "Upstream service failed"
	case http.StatusServiceUnavailable:
		return "Service unavailable"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return "Operation failed"
	}
}

// getErrorCode generates error codes based on status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadGateway:
		return "BAD_GATEWAY"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusInternalServerError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// shouldSkipUnifiedResponse passes through websockets, docs, health checks and avatar images.
func shouldSkipUnifiedResponse(c *gin.Context) bool {
	path := c.Request.URL.Path

	for _, prefix := range []string{"/ws/", "/swagger", "/health"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	if c.Request.Method == http.MethodGet && strings.HasPrefix(path, "/api/agents/") && strings.HasSuffix(path, "/avatar") {
		return true
	}

	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
