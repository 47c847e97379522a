package main

import (
	"github.com/jordanlanch/leadcrm/pkg/api/handlers"
	custommw "github.com/jordanlanch/leadcrm/pkg/api/middleware"
	"github.com/jordanlanch/leadcrm/pkg/auth"
	custommiddleware "github.com/jordanlanch/leadcrm/pkg/middleware"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type routeDeps struct {
	jwtSecret         string
	blacklist         *auth.TokenBlacklist
	publicRateLimiter *custommiddleware.RateLimiter

	leads     *handlers.LeadHandler
	lifecycle *handlers.LeadLifecycleHandler
	imports   *handlers.ImportHandler
	exports   *handlers.ExportHandler
	auth      *handlers.AuthHandler
}

func registerRoutes(v1 *echo.Group, d routeDeps) {
	// Public lead-capture form
	v1.POST("/public/leads", d.leads.CreatePublic, d.publicRateLimiter.RateLimitMiddleware())

	protected := v1.Group("")
	protected.Use(custommw.JWTMiddlewareWithBlacklist(d.jwtSecret, d.blacklist))

	adminOnly := custommiddleware.RequireAdmin()
	anyRole := custommiddleware.RequireRole(models.RoleAdmin, models.RoleAgent)

	protected.POST("/auth/logout", d.auth.Logout)

	protected.GET("/agent/leads", d.leads.ListAssigned, anyRole)

	leadsGroup := protected.Group("/leads")
	{
		leadsGroup.GET("", d.leads.List, adminOnly)
		leadsGroup.POST("", d.leads.Create, adminOnly)

		leadsGroup.GET("/statuses", d.lifecycle.GetStatuses, anyRole)
		leadsGroup.GET("/status-counts", d.lifecycle.GetStatusCounts, anyRole)
		leadsGroup.GET("/template", d.imports.Template, adminOnly)
		leadsGroup.POST("/bulk", d.imports.BulkImport, adminOnly, middleware.BodyLimit("6M"))
		leadsGroup.GET("/export", d.exports.Export, anyRole)

		leadsGroup.GET("/:id", d.leads.GetByID, anyRole)
		leadsGroup.PATCH("/:id", d.leads.Update, adminOnly)
		leadsGroup.PATCH("/:id/assign", d.leads.Assign, adminOnly)
		leadsGroup.PATCH("/:id/status", d.lifecycle.UpdateLeadStatus, anyRole)
		leadsGroup.POST("/:id/notes", d.leads.AddNote, anyRole)
		leadsGroup.GET("/:id/status-history", d.lifecycle.GetLeadStatusHistory, anyRole)
	}
}
