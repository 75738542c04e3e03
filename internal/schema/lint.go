package schema

import (
	"fmt"
	"strings"

	"dataview/internal/filter"
)

type Issue struct {
	Object  string `json:"object"` // id источника или представления
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s.%s: %s (%s)", i.Object, i.Field, i.Message, i.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Object, i.Message, i.Code)
}

var aggregateFuncs = map[string]struct{}{
	"count": {}, "sum": {}, "avg": {}, "min": {}, "max": {}, "first": {}, "last": {},
}

// Lint проверяет определения на противоречия до регистрации.
// Пустой результат: можно публиковать.
func Lint(sources []DataSource, views []DataView) []Issue {
	var issues []Issue
	add := func(obj, field, code, msg string) {
		issues = append(issues, Issue{Object: obj, Field: field, Code: code, Message: msg})
	}

	seen := make(map[string]bool, len(sources))
	byID := make(map[string]DataSource, len(sources))
	for _, s := range sources {
		if s.ID == "" {
			add("?", "", "source_id_empty", "data source without id")
			continue
		}
		if seen[s.ID] {
			add(s.ID, "", "source_duplicate", "duplicate data source id")
		}
		seen[s.ID] = true
		byID[s.ID] = s

		if !s.Kind.Valid() {
			add(s.ID, "", "source_kind_unknown", fmt.Sprintf("unknown kind %q (allowed: table|view|query|api|file)", s.Kind))
		}
		if !ValidIdentifier(s.Table()) {
			add(s.ID, "", "source_ident_invalid", fmt.Sprintf("table name %q is not a safe SQL identifier", s.Table()))
		}
		if s.Kind != KindAPI && len(s.Fields) == 0 {
			add(s.ID, "", "source_fields_empty", "fields must be non-empty for kind "+string(s.Kind))
		}

		names := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if !ValidIdentifier(f.Name) || Qualified(f.Name) {
				add(s.ID, f.Name, "field_ident_invalid", "field name is not a safe SQL identifier")
			}
			if names[f.Name] {
				add(s.ID, f.Name, "field_duplicate", "duplicate field")
			}
			names[f.Name] = true
			if !f.Type.Valid() {
				add(s.ID, f.Name, "field_type_unknown", fmt.Sprintf("unknown field type %q", f.Type))
			}
			if f.Type == TypeRelation {
				if f.Relation == nil || strings.TrimSpace(f.Relation.Source) == "" {
					add(s.ID, f.Name, "relation_target_empty", "relation field has empty target source")
				} else if od := strings.ToLower(f.Relation.OnDelete); od == "set_null" && f.Required {
					add(s.ID, f.Name, "required_conflicts_on_delete", "required relation cannot have onDelete=set_null")
				}
			}
		}
		if s.PrimaryKey != "" && !s.HasField(s.PrimaryKey) {
			add(s.ID, s.PrimaryKey, "primary_key_unknown", "primary key is not a declared field")
		}
	}

	// связи указывают на зарегистрированные источники
	for _, s := range sources {
		for _, f := range s.Fields {
			if f.Relation != nil && f.Relation.Source != "" {
				if _, ok := byID[f.Relation.Source]; !ok {
					add(s.ID, f.Name, "relation_target_unknown", fmt.Sprintf("relation target %q is not registered", f.Relation.Source))
				}
			}
		}
	}

	seenViews := make(map[string]bool, len(views))
	for _, v := range views {
		if v.ID == "" {
			add("?", "", "view_id_empty", "data view without id")
			continue
		}
		if seenViews[v.ID] {
			add(v.ID, "", "view_duplicate", "duplicate data view id")
		}
		seenViews[v.ID] = true

		src := v.Source
		if src.ID == "" {
			add(v.ID, "", "view_source_empty", "data view has no source")
			continue
		}
		if len(v.Columns) == 0 {
			add(v.ID, "", "view_columns_empty", "data view has no columns")
		}
		for _, c := range v.Columns {
			field := c.Field
			if _, inner, ok := AggregateExpr(field); ok {
				field = inner
			}
			if field != "*" && !src.HasField(field) {
				add(v.ID, c.Field, "column_unknown", "column references undeclared field of "+src.ID)
			}
			if c.Aggregate != "" {
				if _, ok := aggregateFuncs[c.Aggregate]; !ok {
					add(v.ID, c.Field, "aggregate_unknown", fmt.Sprintf("unknown aggregate %q", c.Aggregate))
				}
			}
			if c.Format != nil && !c.Format.Type.Valid() {
				add(v.ID, c.Field, "format_unknown", fmt.Sprintf("unknown format type %q", c.Format.Type))
			}
		}
		for _, st := range v.Sorts {
			if !src.HasField(st.Field) {
				add(v.ID, st.Field, "sort_unknown", "sort references undeclared field")
			}
			if st.Direction != Asc && st.Direction != Desc && st.Direction != "" {
				add(v.ID, st.Field, "sort_direction_unknown", fmt.Sprintf("unknown direction %q", st.Direction))
			}
		}
		for _, g := range v.GroupBy {
			if !src.HasField(g) {
				add(v.ID, g, "group_unknown", "groupBy references undeclared field")
			}
		}
		if v.Filters != nil {
			for _, c := range filter.Conditions(v.Filters) {
				if !c.Operator.Known() {
					add(v.ID, c.Field, "operator_unknown", fmt.Sprintf("unknown operator %q", c.Operator))
				}
				if !src.HasPath(c.Field) {
					add(v.ID, c.Field, "filter_unknown", "filter references undeclared field")
				}
			}
		}
		if v.Pagination != nil && v.Pagination.Enabled && v.Pagination.PageSize < 0 {
			add(v.ID, "", "page_size_invalid", "pageSize must be positive")
		}
	}
	return issues
}
