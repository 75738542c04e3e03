package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		// метаданные
		apiGroup.GET("/meta/sources", MetaSourcesHandler(s))
		apiGroup.GET("/meta/sources/:id", MetaSourceHandler(s))
		apiGroup.GET("/meta/views", MetaViewsHandler(s))
		apiGroup.GET("/meta/views/:id", MetaViewHandler(s))
		apiGroup.GET("/meta/catalogs/:name", MetaCatalogHandler(s))

		// представления
		apiGroup.GET("/views/:id/_compile", CompileViewHandler(s))
		apiGroup.POST("/views/:id/_compile", CompileViewHandler(s))
		apiGroup.GET("/views/:id/rows", ViewRowsHandler(s))
		apiGroup.POST("/views/:id/_rows", ViewRowsHandler(s))
		apiGroup.POST("/views/:id/_query", ViewQueryHandler(s))
		apiGroup.POST("/sources/:id/_query", SourceQueryHandler(s))

		// администрирование
		apiGroup.POST("/admin/reload", AdminReloadHandler(s))
		apiGroup.GET("/admin/lint", AdminLintHandler(s))
	}
	return r
}

// requestLogger пишет access-лог в slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ms", time.Since(start).Milliseconds(),
		)
	}
}

func RunServer(addr string, s *Server) error {
	return NewRouter(s).Run(addr)
}
