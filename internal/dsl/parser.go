package dsl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"dataview/internal/schema"
)

var (
	sourceRe = regexp.MustCompile(`^source\s+([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(?:([a-z]+)(?:\s+|$))?(.*)$`)
	fieldRe  = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	enumRe   = regexp.MustCompile(`^enum\[(.*)\]$`)
	refRe    = regexp.MustCompile(`^ref\[([A-Za-z0-9_.]+)\]$`)
	arrayRe  = regexp.MustCompile(`^array\[(.+)\]$`)
	moduleRe = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_]+)\s*$`)
)

// короткие имена типов DSL -> FieldType
var typeAliases = map[string]schema.FieldType{
	"int":   schema.TypeNumber,
	"float": schema.TypeNumber,
	"money": schema.TypeCurrency,
	"bool":  schema.TypeBoolean,
	"text":  schema.TypeString,
}

// splitOptionTokens делит "k=v k2='v 2' pattern=^[A-Z0-9 _-]+$" на токены,
// не разрывая по пробелам внутри кавычек и [...].
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
		case ' ', '\t':
			if !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
		}
		buf = append(buf, r)
	}
	flush()
	return out
}

// parseOptions: флаг без значения -> "true", кавычки вокруг значения снимаются.
func parseOptions(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	opts := map[string]string{}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.Trim(strings.TrimSpace(tok), ",")
		if tok == "" {
			continue
		}
		k, v, ok := strings.Cut(tok, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok {
			opts[k] = "true"
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' && v[len(v)-1] == '"' || v[0] == '\'' && v[len(v)-1] == '\'') {
			v = v[1 : len(v)-1]
		}
		if k != "" {
			opts[k] = v
		}
	}
	return opts
}

func splitList(inside string) []string {
	var out []string
	for _, p := range strings.Split(inside, ",") {
		if s := strings.Trim(strings.TrimSpace(p), `"'`); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// qualify дополняет ссылку модулем: ref[teams] в module ops -> ops.teams.
func qualify(module, ref string) string {
	if strings.Contains(ref, ".") || module == "" {
		return ref
	}
	return module + "." + ref
}

// LoadSources читает *.dsl файл.
func LoadSources(path string) ([]schema.DataSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseSources(file)
}

// ParseSources разбирает DSL:
//
//	module ops
//	source tickets: table entity=tickets pk=id timestamps soft_delete
//	  id: string required
//	  status: enum[open, closed] default=open indexed
//	  team_id: ref[teams] on_delete=set_null
//
// id источника: module.name.
func ParseSources(r io.Reader) ([]schema.DataSource, error) {
	var (
		sources []schema.DataSource
		current *schema.DataSource
		module  string
		lineNo  int
	)
	closeCurrent := func() {
		if current != nil {
			sources = append(sources, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			closeCurrent()
			module = m[1]
			continue
		}

		if m := sourceRe.FindStringSubmatch(line); m != nil {
			closeCurrent()
			if module == "" {
				return nil, fmt.Errorf("line %d: source %q has no module, add `module <name>` above", lineNo, m[1])
			}
			src, err := sourceHeader(module, m[1], m[2], m[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = &src
			continue
		}

		if current == nil {
			// вне источника
			continue
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		f, err := parseField(module, m[1], m[2], m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s.%s: %w", lineNo, current.ID, m[1], err)
		}
		current.Fields = append(current.Fields, f)
	}
	closeCurrent()
	return sources, scanner.Err()
}

func sourceHeader(module, name, kind, tail string) (schema.DataSource, error) {
	src := schema.DataSource{
		ID:   module + "." + name,
		Name: name,
		Kind: schema.KindTable,
	}
	if kind != "" {
		src.Kind = schema.SourceKind(kind)
		if !src.Kind.Valid() {
			return src, fmt.Errorf("unknown source kind %q", kind)
		}
	}
	opts := parseOptions(tail)
	if v := opts["label"]; v != "" {
		src.Name = v
	}
	src.Entity = opts["entity"]
	if src.Entity == "" && src.Kind == schema.KindTable {
		src.Entity = module + "." + name
	}
	src.PrimaryKey = opts["pk"]
	if v, ok := opts["timestamps"]; ok && v != "false" {
		src.Timestamps = &schema.Timestamps{CreatedAt: "created_at", UpdatedAt: "updated_at"}
	}
	if v, ok := opts["soft_delete"]; ok && v != "false" {
		field := "deleted_at"
		if v != "true" {
			field = v
		}
		src.SoftDelete = &schema.SoftDelete{Field: field}
	}
	return src, nil
}

func parseField(module, name, rawType, tail string) (schema.FieldDefinition, error) {
	// склейка типов со скобками, разорванных пробелом: enum[a, b]
	if depth := strings.Count(rawType, "[") - strings.Count(rawType, "]"); depth > 0 {
		for i, r := range tail {
			switch r {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				rawType += tail[:i+1]
				tail = tail[i+1:]
				break
			}
		}
	}
	opts := parseOptions(tail)

	f := schema.FieldDefinition{Name: name}
	var v schema.Validation
	hasValidation := false

	switch {
	case enumRe.MatchString(rawType):
		f.Type = schema.TypeString
		v.Enum = splitList(enumRe.FindStringSubmatch(rawType)[1])
		hasValidation = true
	case refRe.MatchString(rawType):
		f.Type = schema.TypeRelation
		f.Relation = &schema.Relation{
			Source:   qualify(module, refRe.FindStringSubmatch(rawType)[1]),
			Kind:     "belongsTo",
			OnDelete: opts["on_delete"],
		}
	case arrayRe.MatchString(rawType):
		f.Type = schema.TypeArray
		elem := strings.TrimSpace(arrayRe.FindStringSubmatch(rawType)[1])
		switch {
		case enumRe.MatchString(elem):
			v.ElemType = "enum"
			v.Enum = splitList(enumRe.FindStringSubmatch(elem)[1])
		case refRe.MatchString(elem):
			v.ElemType = "ref"
			f.Relation = &schema.Relation{Source: qualify(module, refRe.FindStringSubmatch(elem)[1]), Kind: "hasMany"}
		default:
			v.ElemType = elem
		}
		hasValidation = true
	default:
		t := schema.FieldType(strings.ToLower(rawType))
		if alias, ok := typeAliases[string(t)]; ok {
			t = alias
		}
		if !t.Valid() {
			return f, fmt.Errorf("unknown type %q", rawType)
		}
		f.Type = t
	}

	for k, val := range opts {
		switch k {
		case "required":
			f.Required = val == "true"
		case "unique":
			f.Unique = val == "true"
		case "indexed", "index":
			f.Indexed = val == "true"
		case "label":
			f.Label = val
		case "format":
			f.Format = val
		case "default":
			f.DefaultValue = val
		case "pattern":
			v.Pattern = val
			hasValidation = true
		case "min", "max":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return f, fmt.Errorf("%s: %w", k, err)
			}
			if k == "min" {
				v.Min = &n
			} else {
				v.Max = &n
			}
			hasValidation = true
		case "min_length", "max_length":
			n, err := strconv.Atoi(val)
			if err != nil {
				return f, fmt.Errorf("%s: %w", k, err)
			}
			if k == "min_length" {
				v.MinLength = &n
			} else {
				v.MaxLength = &n
			}
			hasValidation = true
		case "on_delete":
			// применяется выше к ref
		default:
			return f, fmt.Errorf("unknown option %q", k)
		}
	}
	if hasValidation {
		f.Validation = &v
	}
	return f, nil
}
