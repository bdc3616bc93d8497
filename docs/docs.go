package docs

import "github.com/swaggo/swag"

// docTemplate is replaced by `go generate ./docs`, which expands every handler annotation.
const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "termsOfService": "http://swagger.io/terms/",
        "contact": {
            "name": "API Support",
            "email": "support@agentdesk.local"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {},
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "auth", "description": "Login, token refresh, logout and password management"},
        {"name": "organizations", "description": "Tenant management"},
        {"name": "shops", "description": "Shops inside an organization"},
        {"name": "users", "description": "User management"},
        {"name": "settings", "description": "Per-user preferences"},
        {"name": "agents", "description": "Agent personas, defaults and avatars"},
        {"name": "chat", "description": "Conversations, messages and the status websocket"}
    ]
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "AgentDesk API",
	Description:      "AI agent desk: agents, organizations, shops, users and chat relayed to an automation webhook.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
