package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"reicrm/internal/authz"
	"reicrm/internal/handlers"
	"reicrm/internal/middleware"
	"reicrm/internal/utils"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Users      *handlers.UserHandler
	Properties *handlers.PropertyHandler
	Leads      *handlers.LeadHandler
	Analysis   *handlers.AnalysisHandler
	Reports    *handlers.ReportHandler
	Automation *handlers.AutomationHandler
	Health     *handlers.HealthHandler
}

func SetupRoutes(r *gin.Engine, tokens *utils.JWTManager, h Handlers) *gin.Engine {
	elevated := middleware.RequireRoles(authz.RoleAdmin, authz.RoleManager)
	adminOnly := middleware.RequireRoles(authz.RoleAdmin)

	r.GET("/healthz", h.Health.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	// ---- public
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)
	}

	// ---- protected
	protected := api.Group("", middleware.AuthMiddleware(tokens))
	{
		me := protected.Group("/auth")
		me.GET("/me", h.Auth.Me)
		me.POST("/logout", h.Auth.Logout)
		me.PUT("/password", h.Auth.ChangePassword)
	}

	// profile edits are allowed for every role, so the read-only guard starts here
	users := protected.Group("/users")
	{
		users.GET("", elevated, h.Users.ListUsers)
		users.POST("", adminOnly, h.Users.CreateUser)
		users.GET("/:id", h.Users.GetUserByID)
		users.PUT("/:id", h.Users.UpdateUser)
		users.DELETE("/:id", adminOnly, h.Users.DeleteUser)
		users.PUT("/:id/subscription", adminOnly, h.Users.UpdateSubscription)
	}

	guarded := protected.Group("", middleware.ReadOnlyGuard())

	properties := guarded.Group("/properties")
	{
		properties.GET("", h.Properties.List)
		properties.GET("/stats", h.Properties.Stats)
		properties.POST("", h.Properties.Create)
		properties.GET("/:id", h.Properties.Get)
		properties.PUT("/:id", h.Properties.Update)
		properties.DELETE("/:id", h.Properties.Delete)
		properties.PUT("/:id/assign", elevated, h.Properties.Assign)
	}

	leads := guarded.Group("/leads")
	{
		leads.GET("", h.Leads.List)
		leads.GET("/follow-ups", h.Leads.FollowUps)
		leads.POST("", h.Leads.Create)
		leads.GET("/:id", h.Leads.GetByID)
		leads.PUT("/:id", h.Leads.Update)
		leads.DELETE("/:id", h.Leads.Delete)
		leads.POST("/:id/status", h.Leads.ChangeStatus)
		leads.POST("/:id/assign", elevated, h.Leads.Assign)
		leads.POST("/:id/notes", h.Leads.AddNote)
	}

	analysis := guarded.Group("/analysis", middleware.RequirePlan(authz.PlanBasic, false))
	{
		analysis.POST("/calculate", h.Analysis.Calculate)
		analysis.GET("", h.Analysis.List)
		analysis.POST("", h.Analysis.Create)
		analysis.GET("/:id", h.Analysis.Get)
		analysis.PUT("/:id", h.Analysis.Update)
		analysis.DELETE("/:id", h.Analysis.Delete)
		analysis.GET("/:id/amortization", h.Analysis.Amortization)
		analysis.GET("/:id/pdf", middleware.RequirePlan(authz.PlanProfessional, false), h.Analysis.PDF)
	}

	reports := guarded.Group("/reports", middleware.RequirePlan(authz.PlanProfessional, false))
	{
		reports.GET("/dashboard", h.Reports.Dashboard)
		reports.GET("/leads", h.Reports.Leads)
		reports.GET("/agents", elevated, h.Reports.Agents)
		reports.GET("/export/leads", h.Reports.ExportLeads)
		reports.GET("/export/properties", h.Reports.ExportProperties)
	}

	automation := guarded.Group("/automation", elevated, middleware.RequirePlan(authz.PlanEnterprise, true))
	{
		automation.GET("/status", h.Automation.Status)
		automation.POST("/scrape", h.Automation.Scrape)
		automation.POST("/enrich", h.Automation.Enrich)
		automation.GET("/runs", h.Automation.Runs)
		automation.GET("/sources", h.Automation.Sources)
	}

	return r
}
