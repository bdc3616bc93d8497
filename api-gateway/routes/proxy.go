package routes

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentdesk-backend/shared/config"
)

// Route sends every path under Prefix to Service.
type Route struct {
	Prefix  string
	Service string
}

// DefaultRoutes maps public paths to the service that owns them.
var DefaultRoutes = []Route{
	{Prefix: "/api/auth", Service: "auth"},
	{Prefix: "/api/organizations", Service: "core"},
	{Prefix: "/api/shops", Service: "core"},
	{Prefix: "/api/users", Service: "core"},
	{Prefix: "/api/settings", Service: "core"},
	{Prefix: "/api/agents", Service: "agent"},
	{Prefix: "/api/chat", Service: "chat"},
	{Prefix: "/ws", Service: "chat"},
}

// ServiceURLs returns service URLs from configuration
func ServiceURLs(cfg *config.Config) map[string]string {
	return map[string]string{
		"auth":  cfg.AuthServiceURL,
		"core":  cfg.CoreServiceURL,
		"agent": cfg.AgentServiceURL,
		"chat":  cfg.ChatServiceURL,
	}
}

// Proxy forwards requests to the owning service.
type Proxy struct {
	routes  []Route
	proxies map[string]*httputil.ReverseProxy
	log     *zap.Logger
}

func NewProxy(routes []Route, services map[string]string, log *zap.Logger) (*Proxy, error) {
	if log == nil {
		log = zap.NewNop()
	}

	p := &Proxy{routes: routes, proxies: make(map[string]*httputil.ReverseProxy), log: log}
	for _, route := range routes {
		if _, done := p.proxies[route.Service]; done {
			continue
		}
		raw, ok := services[route.Service]
		if !ok {
			return nil, fmt.Errorf("no URL configured for service %q", route.Service)
		}
		target, err := url.Parse(raw)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid URL %q for service %q", raw, route.Service)
		}
		p.proxies[route.Service] = p.newReverseProxy(route.Service, target)
	}
	return p, nil
}

func (p *Proxy) newReverseProxy(service string, target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		host := r.Host
		director(r)
		r.Header.Set("X-Forwarded-Host", host)
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.log.Error("upstream request failed",
			zap.String("service", service),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error":"Bad gateway","message":"The %s service is unavailable"}`, service)
	}
	return proxy
}

// Match returns the service owning path.
func (p *Proxy) Match(path string) (string, bool) {
	for _, route := range p.routes {
		if path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route.Service, true
		}
	}
	return "", false
}

// Handle proxies the request, or answers 404 when no service owns the path.
func (p *Proxy) Handle(c *gin.Context) {
	service, ok := p.Match(c.Request.URL.Path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": "No service handles " + c.Request.URL.Path})
		return
	}
	p.proxies[service].ServeHTTP(c.Writer, c.Request)
}

// Register sends every request without a gateway route to Handle.
func (p *Proxy) Register(router *gin.Engine) {
	router.NoRoute(p.Handle)
}
