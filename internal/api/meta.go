package api

import (
	"net/http"
	"strings"

	"dataview/internal/schema"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

type metaSourceListItem struct {
	ID     string            `json:"id"`
	Module string            `json:"module"`
	Name   string            `json:"name"`
	Kind   schema.SourceKind `json:"kind"`
	Fields int               `json:"fields"`
}

func MetaSourcesHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := s.Registry.DataSources()
		out := make([]metaSourceListItem, 0, len(all))
		for _, src := range all {
			mod, name := splitFQN(src.ID)
			out = append(out, metaSourceListItem{ID: src.ID, Module: mod, Name: name, Kind: src.Kind, Fields: len(src.Fields)})
		}
		c.JSON(http.StatusOK, out)
	}
}

type metaField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Label    string   `json:"label,omitempty"`
	Required bool     `json:"required,omitempty"`
	ElemType string   `json:"elemType,omitempty"`
	Ref      string   `json:"ref,omitempty"`
	RefID    string   `json:"refId,omitempty"` // id источника после разрешения короткого имени
	OnDelete string   `json:"onDelete,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

type metaSource struct {
	ID         string             `json:"id"`
	Module     string             `json:"module"`
	Name       string             `json:"name"`
	Kind       schema.SourceKind  `json:"kind"`
	Table      string             `json:"table"`
	PrimaryKey string             `json:"primaryKey,omitempty"`
	Fields     []metaField        `json:"fields"`
	Timestamps *schema.Timestamps `json:"timestamps,omitempty"`
	SoftDelete *schema.SoftDelete `json:"softDelete,omitempty"`
	Views      []string           `json:"views"`
}

func MetaSourceHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, ok := s.resolveSource(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data source not found"})
			return
		}

		fields := make([]metaField, 0, len(src.Fields))
		for _, f := range src.Fields {
			mf := metaField{
				Name:     f.Name,
				Type:     string(f.Type),
				Label:    f.Label,
				Required: f.Required,
			}
			if v := f.Validation; v != nil {
				mf.ElemType = v.ElemType
				mf.Enum = append([]string(nil), v.Enum...)
			}
			if r := f.Relation; r != nil {
				mf.Ref = r.Source
				mf.OnDelete = r.OnDelete
				if target, ok := s.resolveSource(r.Source); ok {
					mf.RefID = target.ID
				}
			}
			fields = append(fields, mf)
		}

		views := []string{}
		for _, v := range s.Registry.DataViews() {
			if v.Source.ID == src.ID {
				views = append(views, v.ID)
			}
		}

		mod, name := splitFQN(src.ID)
		c.JSON(http.StatusOK, metaSource{
			ID:         src.ID,
			Module:     mod,
			Name:       name,
			Kind:       src.Kind,
			Table:      src.Table(),
			PrimaryKey: src.PrimaryKey,
			Fields:     fields,
			Timestamps: src.Timestamps,
			SoftDelete: src.SoftDelete,
			Views:      views,
		})
	}
}

type metaViewListItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

func MetaViewsHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		all := s.Registry.DataViews()
		out := make([]metaViewListItem, 0, len(all))
		for _, v := range all {
			out = append(out, metaViewListItem{ID: v.ID, Name: v.Name, Source: v.Source.ID})
		}
		c.JSON(http.StatusOK, out)
	}
}

func MetaViewHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := s.Registry.GetDataView(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data view not found"})
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func MetaCatalogHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		dir, ok := s.catalog(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":  name,
			"items": dir.Ordered(),
		})
	}
}

// splitFQN("module.name") -> ("module","name")
func splitFQN(fqn string) (string, string) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}
