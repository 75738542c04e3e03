package pg

import (
	"fmt"
	"sort"
	"strings"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

type OnDeletePolicy string

const (
	OnDeleteRestrict OnDeletePolicy = "RESTRICT"
	OnDeleteSetNull  OnDeletePolicy = "SET NULL"
	OnDeleteCascade  OnDeletePolicy = "CASCADE"
)

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// qualifiedTable: "ops.tickets" -> "ops"."tickets", иначе схема public.
func qualifiedTable(src schema.DataSource) (schemaName, table string) {
	t := src.Table()
	if i := strings.LastIndexByte(t, '.'); i > 0 {
		return strings.ToLower(t[:i]), strings.ToLower(t[i+1:])
	}
	return "public", strings.ToLower(t)
}

func mapType(t schema.FieldType) (string, error) {
	switch t {
	case schema.TypeString, schema.TypeEmail, schema.TypeURL, schema.TypePhone,
		schema.TypeFile, schema.TypeImage, schema.TypeRelation:
		return "text", nil
	case schema.TypeNumber, schema.TypePercentage:
		return "double precision", nil
	case schema.TypeCurrency:
		return "numeric(18,2)", nil
	case schema.TypeBoolean:
		return "boolean", nil
	case schema.TypeDate:
		return "date", nil
	case schema.TypeDatetime:
		return "timestamp with time zone", nil
	case schema.TypeTime:
		return "time", nil
	case schema.TypeJSON, schema.TypeArray:
		return "jsonb", nil
	}
	return "", fmt.Errorf("unknown type: %s", t)
}

func onDeletePolicy(r *schema.Relation) OnDeletePolicy {
	switch strings.ToLower(strings.TrimSpace(r.OnDelete)) {
	case "set_null":
		return OnDeleteSetNull
	case "cascade":
		return OnDeleteCascade
	default:
		return OnDeleteRestrict
	}
}

func literal(v any) (string, error) {
	s := filter.ToString(v)
	if strings.ContainsAny(s, "\n\r") {
		return "", fmt.Errorf("default value must be single-line")
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
}

// GenerateDDL возвращает карту key -> SQL DDL. Ключи задают порядок ApplyDDL:
// сначала схемы и таблицы с индексами, затем внешние ключи.
func GenerateDDL(sources []schema.DataSource) (map[string]string, error) {
	byID := make(map[string]schema.DataSource, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	sorted := append([]schema.DataSource(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var tables, fks strings.Builder
	seenSchemas := map[string]struct{}{}

	for _, src := range sorted {
		// DDL строим только для собственных таблиц
		if src.Kind != schema.KindTable {
			continue
		}
		if !schema.ValidIdentifier(src.Table()) {
			return nil, fmt.Errorf("%s: invalid table name %q", src.ID, src.Table())
		}
		mod, tbl := qualifiedTable(src)

		if _, ok := seenSchemas[mod]; !ok && mod != "public" {
			fmt.Fprintf(&tables, "create schema if not exists %s;\n", sqlIdent(mod))
			seenSchemas[mod] = struct{}{}
		}

		var cols []string
		seen := map[string]struct{}{}
		for _, f := range src.Fields {
			if !schema.ValidIdentifier(f.Name) {
				return nil, fmt.Errorf("%s: invalid field name %q", src.ID, f.Name)
			}
			name := strings.ToLower(f.Name)
			if _, dup := seen[name]; dup {
				return nil, fmt.Errorf("%s: duplicate column %q", src.ID, f.Name)
			}
			seen[name] = struct{}{}

			typ, err := mapType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", src.ID, f.Name, err)
			}
			col := sqlIdent(f.Name) + " " + typ
			if f.Name == src.PrimaryKey {
				col += " primary key"
			} else if f.Required {
				col += " not null"
			}
			if f.DefaultValue != nil {
				lit, err := literal(f.DefaultValue)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", src.ID, f.Name, err)
				}
				col += " default " + lit
			}
			cols = append(cols, col)
		}
		// системные колонки
		if ts := src.Timestamps; ts != nil {
			for _, c := range []string{ts.CreatedAt, ts.UpdatedAt} {
				if _, dup := seen[strings.ToLower(c)]; c == "" || dup {
					continue
				}
				seen[strings.ToLower(c)] = struct{}{}
				cols = append(cols, sqlIdent(c)+" timestamp with time zone not null default now()")
			}
		}
		if sd := src.SoftDelete; sd != nil && sd.Field != "" {
			if _, dup := seen[strings.ToLower(sd.Field)]; !dup {
				cols = append(cols, sqlIdent(sd.Field)+" timestamp with time zone null")
			}
		}

		fmt.Fprintf(&tables, "create table if not exists %s.%s (\n  %s\n);\n",
			sqlIdent(mod), sqlIdent(tbl), strings.Join(cols, ",\n  "))

		for _, f := range src.Fields {
			switch {
			case f.Unique:
				fmt.Fprintf(&tables, "create unique index if not exists %s on %s.%s(%s);\n",
					sqlIdent(tbl+"_"+f.Name+"_uq"), sqlIdent(mod), sqlIdent(tbl), sqlIdent(f.Name))
			case f.Indexed:
				fmt.Fprintf(&tables, "create index if not exists %s on %s.%s(%s);\n",
					sqlIdent(tbl+"_"+f.Name+"_idx"), sqlIdent(mod), sqlIdent(tbl), sqlIdent(f.Name))
			}
		}

		for _, f := range src.Fields {
			r := f.Relation
			if r == nil || r.Source == "" || strings.EqualFold(r.Kind, "hasMany") {
				continue
			}
			target, ok := byID[r.Source]
			if !ok {
				return nil, fmt.Errorf("%s.%s: relation to unknown source %q", src.ID, f.Name, r.Source)
			}
			refField := r.Field
			if refField == "" {
				refField = target.PrimaryKey
			}
			if refField == "" {
				refField = "id"
			}
			refMod, refTbl := qualifiedTable(target)
			fmt.Fprintf(&fks,
				"alter table %s.%s add constraint %s foreign key (%s) references %s.%s(%s) on delete %s;\n",
				sqlIdent(mod), sqlIdent(tbl),
				sqlIdent(tbl+"_"+f.Name+"_fk"),
				sqlIdent(f.Name),
				sqlIdent(refMod), sqlIdent(refTbl), sqlIdent(refField),
				onDeletePolicy(r),
			)
		}
	}

	out := map[string]string{}
	if tables.Len() > 0 {
		out["100_schemas_and_tables"] = tables.String()
	}
	if fks.Len() > 0 {
		out["200_foreign_keys"] = fks.String()
	}
	return out, nil
}
