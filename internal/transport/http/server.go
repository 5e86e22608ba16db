package http

import (
	"github.com/gin-gonic/gin"

	"demand-foresight/internal/bootstrap"
	"demand-foresight/internal/logging"
	"demand-foresight/internal/transport/http/handler"
	"demand-foresight/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(logging.GinMiddleware(app.Logger), gin.Recovery())

	probes := make(map[string]handler.Probe)
	for name, probe := range app.Probes() {
		probes[name] = probe
	}
	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, probes)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	services := app.Services
	authHandler := handler.NewAuthHandler(services.Auth)
	documentHandler := handler.NewDocumentHandler(services.Documents)
	tagHandler := handler.NewTagHandler(services.Tags)
	chatHandler := handler.NewChatHandler(services.Chat)
	usageHandler := handler.NewUsageHandler(services.Usage)
	sharingHandler := handler.NewSharingHandler(services.Sharing)

	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	loadSession := middleware.LoadSession(app.Sessions, app.Logger)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	v1.GET("/models", authJWT, chatHandler.Models)
	v1.GET("/pricing", authJWT, usageHandler.Pricing)
	v1.GET("/usage", authJWT, usageHandler.Mine)

	documentGroup := v1.Group("/documents", authJWT, loadSession)
	documentGroup.GET("", documentHandler.List)
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.DELETE("", documentHandler.Delete)
	documentGroup.POST("/:id/summary", documentHandler.RequestSummary)
	documentGroup.GET("/:id/content", documentHandler.Content)

	tagGroup := v1.Group("/tags", authJWT, loadSession)
	tagGroup.GET("", tagHandler.List)
	tagGroup.POST("", middleware.RequireAdmin(), tagHandler.Create)
	tagGroup.PUT("/:id", middleware.RequireAdmin(), tagHandler.Rename)
	tagGroup.DELETE("/:id", middleware.RequireAdmin(), tagHandler.Delete)

	chatGroup := v1.Group("/chats", authJWT)
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.GET("/:id", chatHandler.GetChat)
	chatGroup.POST("/stream", loadSession, chatHandler.StreamMessage)

	adminGroup := v1.Group("/admin", authJWT, middleware.RequireAdmin())
	adminGroup.GET("/users", authHandler.ListUsers)
	adminGroup.POST("/users", authHandler.CreateUser)
	adminGroup.DELETE("/users/:username", authHandler.DeleteUser)
	adminGroup.POST("/users/:username/link", authHandler.IssueLoginLink)
	adminGroup.GET("/sharing", loadSession, sharingHandler.Get)
	adminGroup.PUT("/sharing", loadSession, sharingHandler.Apply)
	adminGroup.GET("/usage", usageHandler.ForUser)

	return router
}
