package api

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/autopress/docs"
	"github.com/d60-Lab/autopress/internal/api/handler"
	"github.com/d60-Lab/autopress/internal/api/middleware"
	"github.com/d60-Lab/autopress/pkg/auth"
)

// RouterOptions 可选中间件开关
type RouterOptions struct {
	ServiceName string
	Tracing     bool
	Sentry      bool
	Swagger     bool
}

// NewRouter 注册路由与中间件
func NewRouter(h *handler.Handler, issuer *auth.Issuer, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(func() string { return uuid.New().String() }))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if opts.Tracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", h.Login)

	secured := v1.Group("")
	secured.Use(middleware.JWTAuth(issuer))
	{
		secured.POST("/sweeps", h.TriggerSweep)
		secured.PUT("/bot", h.SetBot)

		posts := secured.Group("/posts")
		posts.GET("/:id", h.GetPost)
		posts.POST("/:id/evaluate", h.EvaluatePost)
		posts.POST("/:id/generate", h.GeneratePost)
		posts.POST("/:id/publish", h.PublishPost)
	}
	return r
}
