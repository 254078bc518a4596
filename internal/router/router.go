package router

import (
	"github.com/gin-gonic/gin"
	"github.com/habitstack/internal/apperr"
	"github.com/habitstack/internal/handler"
	"github.com/habitstack/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options 控制路由层的横切配置
type Options struct {
	CORSOrigins []string
	Logger      *logger.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.Use(
		requestID(),
		requestLogger(log),
		recovery(log),
		observeDuration(),
		corsMiddleware(opts.CORSOrigins),
	)

	r.NoRoute(func(c *gin.Context) {
		handler.AbortWithError(c, apperr.NotFound("Route"))
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api")
	{
		v1.GET("", api.Root)
		v1.GET("/", api.Root)

		v1.GET("/categories", api.ListCategories)
		v1.POST("/categories", api.CreateCategory)

		v1.GET("/habits", api.ListHabits)
		v1.POST("/habits", api.CreateHabit)
		v1.GET("/habits/:id", api.GetHabit)
		v1.PUT("/habits/:id", api.UpdateHabit)
		v1.DELETE("/habits/:id", api.DeleteHabit)

		v1.GET("/stacks", api.ListStacks)
		v1.POST("/stacks", api.CreateStack)
		v1.GET("/stacks/:id", api.GetStack)
		v1.PUT("/stacks/:id", api.UpdateStack)
		v1.DELETE("/stacks/:id", api.DeleteStack)

		v1.GET("/progress", api.ListProgress)
		v1.GET("/progress/:stack_id", api.GetProgress)
		v1.PUT("/progress/:stack_id", api.UpdateProgress)

		v1.POST("/toggle-habit", api.ToggleHabit)
	}

	return r
}
