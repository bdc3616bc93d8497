package handlers

import "github.com/gin-gonic/gin"

type Handlers struct {
	Organizations *OrganizationHandler
	Shops         *ShopHandler
	Users         *UserHandler
	Settings      *SettingsHandler
}

// RegisterRoutes mounts every core endpoint behind authRequired.
func RegisterRoutes(router gin.IRouter, h Handlers, authRequired gin.HandlerFunc) {
	api := router.Group("/api", authRequired)

	// Organization routes
	api.GET("/organizations", h.Organizations.GetOrganizations)
	api.GET("/organizations/:id", h.Organizations.GetOrganization)
	api.POST("/organizations", h.Organizations.CreateOrganization)
	api.PUT("/organizations/:id", h.Organizations.UpdateOrganization)
	api.DELETE("/organizations/:id", h.Organizations.DeleteOrganization)

	// Shop routes
	api.GET("/shops", h.Shops.GetShops)
	api.GET("/shops/:id", h.Shops.GetShop)
	api.POST("/shops", h.Shops.CreateShop)
	api.PUT("/shops/:id", h.Shops.UpdateShop)
	api.DELETE("/shops/:id", h.Shops.DeleteShop)

	// User routes
	api.GET("/users", h.Users.GetUsers)
	api.GET("/users/:id", h.Users.GetUser)
	api.POST("/users", h.Users.CreateUser)
	api.PUT("/users/:id", h.Users.UpdateUser)
	api.DELETE("/users/:id", h.Users.DeleteUser)

	// Settings routes
	api.GET("/settings", h.Settings.GetSettings)
	api.PUT("/settings", h.Settings.UpdateSettings)
}
