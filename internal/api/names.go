package api

import (
	"strings"

	"dataview/internal/schema"
)

// resolveSource ищет источник по id: точное совпадение, затем без учёта
// регистра, затем по короткому имени ("tickets" -> "ops.tickets"), если
// оно уникально среди всех модулей.
func (s *Server) resolveSource(id string) (schema.DataSource, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return schema.DataSource{}, false
	}
	if src, ok := s.Registry.GetDataSource(id); ok {
		return src, true
	}

	all := s.Registry.DataSources()
	for _, src := range all {
		if strings.EqualFold(src.ID, id) {
			return src, true
		}
	}
	if strings.Contains(id, ".") {
		return schema.DataSource{}, false
	}

	var found *schema.DataSource
	for i := range all {
		short := all[i].ID
		if dot := strings.LastIndexByte(short, '.'); dot >= 0 {
			short = short[dot+1:]
		}
		if strings.EqualFold(short, id) {
			if found != nil { // неуникально
				return schema.DataSource{}, false
			}
			found = &all[i]
		}
	}
	if found == nil {
		return schema.DataSource{}, false
	}
	return *found, true
}
