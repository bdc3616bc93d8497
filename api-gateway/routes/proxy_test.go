package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentdesk-backend/shared/config"
)

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service":    name,
			"path":       r.URL.Path,
			"query":      r.URL.RawQuery,
			"request_id": r.Header.Get("X-Request-ID"),
			"auth":       r.Header.Get("Authorization"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(t *testing.T, services map[string]string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	proxy, err := NewProxy(DefaultRoutes, services, zap.NewNop())
	require.NoError(t, err)

	r := gin.New()
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	proxy.Register(r)
	return r
}

func TestProxyRoutesByPrefix(t *testing.T) {
	services := map[string]string{}
	for _, name := range []string{"auth", "core", "agent", "chat"} {
		services[name] = upstream(t, name).URL
	}
	r := newGateway(t, services)

	cases := map[string]string{
		"/api/auth/login":                    "auth",
		"/api/organizations":                 "core",
		"/api/shops/123":                     "core",
		"/api/users?page=2":                  "core",
		"/api/settings":                      "core",
		"/api/agents/preferred":              "agent",
		"/api/chat/conversations/1/messages": "chat",
	}
	for path, service := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer abc")
		req.Header.Set("X-Request-ID", "req-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, service, body["service"], path)
		assert.Equal(t, req.URL.Path, body["path"], path)
		assert.Equal(t, req.URL.RawQuery, body["query"], path)
		assert.Equal(t, "req-1", body["request_id"], path)
		assert.Equal(t, "Bearer abc", body["auth"], path)
	}
}

func TestProxyUnknownPathAndDownService(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	services := map[string]string{"auth": downURL, "core": downURL, "agent": downURL, "chat": downURL}
	r := newGateway(t, services)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "agent service is unavailable")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProxyMatch(t *testing.T) {
	proxy, err := NewProxy(DefaultRoutes, ServiceURLs(config.Default()), zap.NewNop())
	require.NoError(t, err)

	service, ok := proxy.Match("/ws/chat")
	assert.True(t, ok)
	assert.Equal(t, "chat", service)

	_, ok = proxy.Match("/api/agentsx")
	assert.False(t, ok)
	_, ok = proxy.Match("/api")
	assert.False(t, ok)
}

func TestNewProxyRejectsBadConfig(t *testing.T) {
	_, err := NewProxy(DefaultRoutes, map[string]string{"auth": "http://localhost:8001"}, zap.NewNop())
	assert.Error(t, err)

	services := ServiceURLs(config.Default())
	services["core"] = "not a url"
	_, err = NewProxy(DefaultRoutes, services, zap.NewNop())
	assert.Error(t, err)
}
