package main

import (
	"callserver/internal/auth"
	"callserver/internal/callflow"
	"callserver/internal/httpapi"
	"callserver/internal/political"
	"callserver/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, flow *callflow.Handlers, api httpapi.Handlers, registry *political.Registry, authManager *auth.Manager) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Carrier webhooks (public by necessity; Twilio fetches them).
	// NOTE: protect with Twilio signature validation in production.
	flow.Register(r)

	// admin console API
	v1 := r.Group("/v1")
	{
		v1.POST("/auth/login", api.Login)
		v1.POST("/auth/refresh", api.Refresh)

		protected := v1.Group("")
		protected.Use(auth.RequireAccessToken(authManager))
		{
			protected.GET("/me", api.Me)

			// Target search used by the campaign builder form.
			protected.GET("/political_data/search", registry.SearchHandler())

			campaigns := protected.Group("/campaigns")
			campaigns.Use(rbac.RequireAnyRole(rbac.RoleCampaigner, rbac.RoleReviewer))
			{
				campaigns.GET("/:id", api.GetCampaign)
				campaigns.GET("/:id/stats", api.CampaignStats)
			}

			// Blocklist management is admin-only; RequireAnyRole with no
			// listed roles still lets admin through.
			bl := protected.Group("/blocklist")
			bl.Use(rbac.RequireAnyRole())
			{
				bl.GET("", api.ListBlocklist)
				bl.POST("", api.AddBlocklistEntry)
				bl.DELETE("/:id", api.RemoveBlocklistEntry)
			}
		}
	}
}
