package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"budgetapp/chatsync/internal/config"
	"budgetapp/chatsync/internal/handler/middleware"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	postHandler *PostHandler,
	chatHandler *ChatHandler,
	expenseHandler *ExpenseHandler,
	cacheHandler *CacheHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/posts", postHandler.List)
		api.POST("/posts", postHandler.Create)
		api.GET("/posts/:id", postHandler.Get)
		api.DELETE("/posts/:id", postHandler.Delete)

		api.GET("/rooms/:id/messages", chatHandler.History)
		api.POST("/rooms/:id/messages", chatHandler.Send)
		api.GET("/rooms/:id/stream", chatHandler.Stream)

		api.GET("/users/:id/posts", postHandler.ListByUser)
		api.GET("/users/:id/expenses", expenseHandler.List)
		api.POST("/users/:id/expenses", expenseHandler.Add)
		api.GET("/users/:id/expenses/summary", expenseHandler.Summary)
	}

	// Cache maintenance
	admin := r.Group("/api/v1/cache")
	{
		admin.DELETE("", cacheHandler.ClearAll)
		admin.POST("/clear-expired", cacheHandler.ClearExpired)
		admin.DELETE("/:key", cacheHandler.Remove)
	}

	return r
}
