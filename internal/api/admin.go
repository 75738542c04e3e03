package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"dataview/internal/dsl"
	"dataview/internal/reference"
	"dataview/internal/schema"

	"github.com/gin-gonic/gin"
)

// LintError: определения прочитаны, но линтер нашёл блокирующие проблемы.
type LintError struct {
	Issues []schema.Issue
}

func (e *LintError) Error() string {
	return fmt.Sprintf("definitions have %d blocking issue(s), first: %s", len(e.Issues), e.Issues[0])
}

type ReloadSummary struct {
	DefsDir  string `json:"defsDir"`
	EnumsDir string `json:"enumsDir"`
	Sources  int    `json:"sources"`
	Views    int    `json:"views"`
	Catalogs int    `json:"catalogs"`
}

// Reload перечитывает определения и справочники. Реестр заменяется только
// если линтер не нашёл проблем; иначе старое состояние остаётся.
func (s *Server) Reload(defsDir, enumsDir string) (ReloadSummary, error) {
	sum := ReloadSummary{DefsDir: defsDir, EnumsDir: enumsDir}

	defs, err := dsl.LoadAll(defsDir)
	if err != nil {
		return sum, fmt.Errorf("load definitions: %w", err)
	}
	cats := reference.Catalogs{}
	if enumsDir != "" {
		if cats, err = reference.LoadEnumCatalog(enumsDir); err != nil {
			return sum, fmt.Errorf("load catalogs: %w", err)
		}
	}
	issues := schema.Lint(defs.Sources, defs.Views)
	issues = append(issues, catalogIssues(defs.Views, cats)...)
	if len(issues) > 0 {
		return sum, &LintError{Issues: issues}
	}

	s.Registry.Replace(defs.Sources, defs.Views)
	s.setCatalogs(cats)

	sum.Sources = len(defs.Sources)
	sum.Views = len(defs.Views)
	sum.Catalogs = len(cats)
	slog.Info("definitions reloaded",
		"defs", defsDir, "sources", sum.Sources, "views", sum.Views, "catalogs", sum.Catalogs)
	return sum, nil
}

// catalogIssues: enum-колонка ссылается на справочник, которого нет.
func catalogIssues(views []schema.DataView, cats reference.Catalogs) []schema.Issue {
	var out []schema.Issue
	for _, v := range views {
		for _, c := range v.Columns {
			if c.Format == nil || c.Format.Type != schema.FormatEnum || c.Format.Catalog == "" {
				continue
			}
			if _, ok := cats[c.Format.Catalog]; !ok {
				out = append(out, schema.Issue{
					Object:  v.ID,
					Field:   c.Field,
					Code:    "catalog_unknown",
					Message: fmt.Sprintf("enum column references unknown catalog %q", c.Format.Catalog),
				})
			}
		}
	}
	return out
}

type reloadReq struct {
	DefsRoot  string `json:"defs_root"`
	EnumsRoot string `json:"enums_root"`
}

func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}

		defsRoot := strings.TrimSpace(req.DefsRoot)
		if defsRoot == "" {
			defsRoot = s.DefsDir
		}
		enumsRoot := strings.TrimSpace(req.EnumsRoot)
		if enumsRoot == "" {
			enumsRoot = s.EnumsDir
		}

		sum, err := s.Reload(defsRoot, enumsRoot)
		if err != nil {
			var le *LintError
			if errors.As(err, &le) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":    "definitions have blocking issues",
					"issues":   le.Issues,
					"hint":     "fix definitions and retry",
					"defsRoot": defsRoot, "enumsRoot": enumsRoot,
				})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Definitions load error", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "summary": sum})
	}
}
