package api

import (
	"net/http"

	"dataview/internal/schema"

	"github.com/gin-gonic/gin"
)

// Lint прогоняет линтер по опубликованным определениям.
func (s *Server) Lint() []schema.Issue {
	views := s.Registry.DataViews()
	issues := schema.Lint(s.Registry.DataSources(), views)

	s.mu.RLock()
	cats := s.catalogs
	s.mu.RUnlock()
	return append(issues, catalogIssues(views, cats)...)
}

func AdminLintHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := s.Lint()
		if issues == nil {
			issues = []schema.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"ok": len(issues) == 0, "issues": issues})
	}
}
