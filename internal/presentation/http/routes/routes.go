// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/clicktrail-go/internal/application/container"
	"github.com/AtRiskMedia/clicktrail-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/clicktrail-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics(container.Metrics))
	r.Use(middleware.CORSMiddleware(container.Config.Server.AllowedOrigins))

	// Initialize handlers
	attributionHandlers := handlers.NewAttributionHandlers(container.AttributionService, container.Logger)
	formHandlers := handlers.NewFormHandlers(container.FormService, container.LeadService, container.Logger)
	ajaxHandlers := handlers.NewAjaxHandlers(container.RiskService, container.Logger)
	streamHandlers := handlers.NewStreamHandlers(container.Stream, container.Config.Server.AllowedOrigins, container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.PageStore, container.Stream.ClientCount)
	logHandlers := handlers.NewLogHandlers(container.Logger)

	r.GET("/health", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(container.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		attributionAPI := api.Group("/attribution")
		{
			attributionAPI.GET("/config", attributionHandlers.GetConfig)
			attributionAPI.POST("/collect", attributionHandlers.Collect)
			attributionAPI.POST("/consent", attributionHandlers.Consent)
		}

		formsAPI := api.Group("/forms")
		{
			formsAPI.GET("", formHandlers.GetProviders)
			formsAPI.GET("/:provider/fields", formHandlers.GetFields)
			formsAPI.POST("/:provider/submit", formHandlers.Submit)
		}

		api.POST("/ajax", ajaxHandlers.Handle)

		adminAPI := api.Group("")
		adminAPI.Use(middleware.AdminAuth(container.Config.Server.AdminToken))
		{
			adminAPI.GET("/leads", formHandlers.GetRecentLeads)
			adminAPI.GET("/leads/:id", formHandlers.GetLead)
			adminAPI.GET("/risks/summary", ajaxHandlers.GetRiskSummary)
			adminAPI.GET("/datalayer/stream", streamHandlers.Stream)

			adminAPI.GET("/logs/stream", logHandlers.StreamLogs)
			adminAPI.GET("/logs/levels", logHandlers.GetLogLevels)
			adminAPI.POST("/logs/levels", logHandlers.SetLogLevel)
		}
	}

	return r
}
