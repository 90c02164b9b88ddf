package http

import (
	"github.com/gin-gonic/gin"

	"docchat/internal/bootstrap"
	"docchat/internal/gateway"
	"docchat/internal/pkg/pdfcheck"
	"docchat/internal/transport/http/handler"
)

type routeDeps struct {
	Store     gateway.ObjectStore
	Index     gateway.Index
	Documents handler.DocumentManager
	Chat      handler.ChatSender
	Health    *handler.HealthHandler
	Validate  handler.Validator
	MaxBytes  int64

	// Reports is nil when the lifecycle event bus is disabled.
	Reports handler.ReportLister
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	strict := app.Config.Upload.StrictPDF
	deps := routeDeps{
		Store:     app.Store,
		Index:     app.Index,
		Documents: app.Documents,
		Chat:      app.Chat,
		Health:    handler.NewHealthHandler(app, app.Config.App.Name, app.Config.App.Env, app.StartedAt),
		Validate: func(name string, content []byte) error {
			return pdfcheck.Validate(name, content, strict)
		},
		MaxBytes: app.Config.Upload.MaxBytes,
	}
	if app.Reports != nil {
		deps.Reports = app.Reports
	}

	registerRoutes(router, deps)
	return router
}

func registerRoutes(router *gin.Engine, deps routeDeps) {
	if deps.MaxBytes > 0 {
		router.MaxMultipartMemory = deps.MaxBytes
	}
	if deps.Health != nil {
		router.GET("/healthz", deps.Health.Check)
	}

	filesHandler := handler.NewFilesHandler(deps.Store, deps.Validate, deps.MaxBytes)
	indexHandler := handler.NewIndexHandler(deps.Index)
	documentsHandler := handler.NewDocumentsHandler(deps.Documents, deps.MaxBytes)
	chatHandler := handler.NewChatHandler(deps.Chat)

	v1 := router.Group("/api/v1")

	filesGroup := v1.Group("/files")
	filesGroup.POST("", filesHandler.Upload)
	filesGroup.GET("", filesHandler.List)
	filesGroup.DELETE("", filesHandler.Delete)

	indexGroup := v1.Group("/index")
	indexGroup.POST("", indexHandler.Index)
	indexGroup.DELETE("", indexHandler.Delete)
	v1.POST("/query", indexHandler.Query)

	documentsGroup := v1.Group("/documents")
	documentsGroup.POST("", documentsHandler.Upload)
	documentsGroup.GET("", documentsHandler.List)
	documentsGroup.DELETE("", documentsHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/messages", chatHandler.GetMessages)

	if deps.Reports != nil {
		v1.GET("/inconsistencies", handler.NewInconsistencyHandler(deps.Reports).List)
	}
}
