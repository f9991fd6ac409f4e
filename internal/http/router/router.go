package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/freelance-escrow/internal/auth"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/http/middleware"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/handler"
)

// Handlers — набор обработчиков HTTP API.
type Handlers struct {
	Project     *handler.ProjectHandler
	Application *handler.ApplicationHandler
	Contract    *handler.ContractHandler
	Payout      *handler.PayoutHandler
	Webhook     *handler.WebhookHandler
	Admin       *handler.AdminHandler
	Health      *handler.HealthHandler
	// WS может отсутствовать.
	WS *handler.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *auth.TokenManager) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Вебхуки провайдера: без JWT и без общего лимита, проверяется подпись.
	api.POST("/webhooks/gateway", h.Webhook.Handle)

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("")
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	protected.Use(middleware.AuthMiddleware(tokens))

	projects := protected.Group("/projects")
	{
		projects.GET("", h.Project.List)
		projects.POST("", middleware.RequireRole(valueobject.RoleEmployer, valueobject.RoleAdmin), h.Project.Create)
		projects.GET("/:id", middleware.UUIDValidator("id"), h.Project.Get)
		projects.PUT("/:id", middleware.UUIDValidator("id"), h.Project.Update)
		projects.POST("/:id/close", middleware.UUIDValidator("id"), h.Project.Close)
		projects.GET("/:id/applications", middleware.UUIDValidator("id"), h.Project.ListApplications)
		projects.POST("/:id/applications", middleware.UUIDValidator("id"), h.Project.SubmitApplication)
	}

	me := protected.Group("/me")
	{
		me.GET("/projects", middleware.RequireRole(valueobject.RoleEmployer, valueobject.RoleAdmin), h.Project.ListMine)
		me.GET("/applications", middleware.RequireRole(valueobject.RoleFreelancer), h.Project.ListMyApplications)
	}

	applications := protected.Group("/applications/:id", middleware.UUIDValidator("id"))
	{
		applications.POST("/accept", h.Application.Accept)
		applications.POST("/reject", h.Application.Reject)
	}

	protected.GET("/contracts", h.Contract.ListMine)
	contracts := protected.Group("/contracts/:id", middleware.UUIDValidator("id"))
	{
		contracts.GET("", h.Contract.Get)
		contracts.GET("/payments", h.Contract.Payments)
		contracts.POST("/complete", h.Contract.Complete)
		contracts.POST("/cancel", h.Contract.Cancel)
		contracts.POST("/fund", h.Contract.Fund)
		contracts.POST("/release", h.Contract.Release)
		contracts.POST("/refund", h.Contract.Refund)
	}

	payout := protected.Group("/payout-account", middleware.RequireRole(valueobject.RoleFreelancer))
	{
		payout.GET("", h.Payout.Get)
		payout.POST("", h.Payout.Register)
		payout.POST("/refresh", h.Payout.Refresh)
	}

	admin := protected.Group("/admin", middleware.RequireRole(valueobject.RoleAdmin))
	{
		admin.POST("/sweep", h.Admin.Sweep)
	}

	return r
}
