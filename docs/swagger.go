// Package docs AgentDesk API documentation
package docs

//go:generate swag init --parseDependency --parseInternal -g docs/swagger.go -d ../ -o .

// Swagger documentation info
// @title AgentDesk API
// @version 1.0
// @description AI agent desk: agents, organizations, shops, users and chat relayed to an automation webhook.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@agentdesk.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// Auth Service Endpoints
// @tag.name auth
// @tag.description Login, token refresh, logout and password management

// Core Service Endpoints
// @tag.name organizations
// @tag.description Tenant management
// @tag.name shops
// @tag.description Shops inside an organization
// @tag.name users
// @tag.description User management
// @tag.name settings
// @tag.description Per-user preferences

// Agent Service Endpoints
// @tag.name agents
// @tag.description Agent personas, defaults and avatars

// Chat Service Endpoints
// @tag.name chat
// @tag.description Conversations, messages and the status websocket
