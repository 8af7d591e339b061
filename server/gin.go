package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/dataset-iam/permission"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewGinEngine builds a Gin router and registers all routes.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.Logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	r.POST("/api/login", s.HandleLoginGin)

	// TokenMiddleware sets user_id for everything below.
	api := r.Group("/api")
	api.Use(s.TokenMiddleware())

	api.GET("/users/me/private-role", s.HandleGetPrivateRoleGin)
	api.GET("/datasets/:id/check", s.HandleCheckDatasetGin)

	manage := s.RequireDatasetAction(permission.DatasetManagePermissions)
	api.GET("/datasets/:id/permissions", manage, s.HandleGetDatasetPermissionsGin)
	api.PUT("/datasets/:id/permissions", manage, s.HandleSetDatasetPermissionsGin)
	api.POST("/datasets/:id/share", manage, s.HandleShareDatasetGin)
	api.POST("/datasets/:id/publish", manage, s.HandlePublishDatasetGin)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
