package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/threadmill/storefront-backend/internal/handlers"
	"github.com/threadmill/storefront-backend/internal/middleware"
)

type RouterConfig struct {
	PatchHandler    *handlers.PatchHandler
	ReleaseHandler  *handlers.ReleaseHandler
	BaselineHandler *handlers.BaselineHandler
	RequestLogger   *middleware.RequestLogger
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.RequestLogger != nil {
		router.Use(cfg.RequestLogger.Handle())
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/patches/apply", cfg.PatchHandler.ApplyPatches)
		api.POST("/patches", cfg.PatchHandler.CreatePatch)
		api.POST("/sessions/:id/finalize", cfg.PatchHandler.FinalizeSession)
		api.DELETE("/cache", cfg.PatchHandler.ClearCache)

		api.POST("/releases", cfg.ReleaseHandler.CreateRelease)
		api.POST("/releases/:id/publish", cfg.ReleaseHandler.PublishRelease)
		api.POST("/releases/:id/rollback", cfg.ReleaseHandler.RollbackRelease)

		api.POST("/baselines", cfg.BaselineHandler.CreateBaseline)
		api.GET("/baselines", cfg.BaselineHandler.GetBaseline)
	}

	return router
}
