package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Row     int    `json:"row"`
}

const (
	ErrRequired     = "required"
	ErrTypeMismatch = "type_mismatch"
	ErrEnumInvalid  = "enum_invalid"
	ErrOutOfRange   = "out_of_range"
	ErrLength       = "length"
	ErrPattern      = "pattern"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// validateRecord проверяет запись по полям источника и возвращает
// нормализованную копию: числа -> float64, date/datetime -> time.Time.
// Необъявленные ключи переносятся как есть.
func validateRecord(src schema.DataSource, in filter.Record) (filter.Record, []FieldError) {
	out := make(filter.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	var errs []FieldError

	for _, f := range src.Fields {
		v, present := in[f.Name]
		if !present || v == nil {
			if f.Required {
				errs = append(errs, ferr(ErrRequired, f.Name, "Field '"+f.Name+"' is required"))
			}
			continue
		}
		norm, err := coerceValue(f, v)
		if err != nil {
			errs = append(errs, ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' "+err.Error()))
			continue
		}
		if fe := checkConstraints(f, norm); fe != nil {
			errs = append(errs, *fe)
			continue
		}
		out[f.Name] = norm
	}
	return out, errs
}

var timeRe = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)

func coerceValue(f schema.FieldDefinition, v any) (any, error) {
	switch f.Type {
	case schema.TypeString, schema.TypeFile, schema.TypeImage, schema.TypePhone, schema.TypeRelation:
		return toStringStrict(v)
	case schema.TypeEmail:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if at := strings.IndexByte(s, '@'); at <= 0 || at == len(s)-1 {
			return nil, errors.New("must be an email address")
		}
		return s, nil
	case schema.TypeURL:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if u, err := url.Parse(s); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("must be an absolute URL")
		}
		return s, nil
	case schema.TypeNumber, schema.TypeCurrency, schema.TypePercentage:
		return toFloatStrict(v)
	case schema.TypeBoolean:
		return toBoolStrict(v)
	case schema.TypeDate:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		return t, nil
	case schema.TypeDatetime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err != nil {
			return nil, errors.New("must be RFC3339 datetime")
		}
		return t, nil
	case schema.TypeTime:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if !timeRe.MatchString(s) {
			return nil, errors.New("must match HH:MM[:SS]")
		}
		return s, nil
	case schema.TypeArray:
		arr, ok := filter.AsSlice(v)
		if !ok {
			return nil, errors.New("must be array")
		}
		elem := schema.FieldDefinition{Name: f.Name, Type: elemType(f)}
		out := make([]any, 0, len(arr))
		for i, ev := range arr {
			norm, err := coerceValue(elem, ev)
			if err != nil {
				return nil, fmt.Errorf("array element %d: %v", i, err)
			}
			out = append(out, norm)
		}
		return out, nil
	default:
		// json и прочее: как есть
		return v, nil
	}
}

// elemType: array[enum]/array[ref] хранят строки.
func elemType(f schema.FieldDefinition) schema.FieldType {
	if f.Validation == nil {
		return schema.TypeJSON
	}
	switch f.Validation.ElemType {
	case "", "json":
		return schema.TypeJSON
	case "enum", "ref":
		return schema.TypeString
	case "int", "float":
		return schema.TypeNumber
	case "bool":
		return schema.TypeBoolean
	}
	return schema.FieldType(f.Validation.ElemType)
}

func checkConstraints(f schema.FieldDefinition, v any) *FieldError {
	rules := f.Validation
	if rules == nil {
		return nil
	}
	fail := func(code, msg string) *FieldError {
		e := ferr(code, f.Name, "Field '"+f.Name+"' "+msg)
		return &e
	}

	if len(rules.Enum) > 0 {
		values := []any{v}
		if arr, ok := v.([]any); ok {
			values = arr
		}
		for _, item := range values {
			s := filter.ToString(item)
			allowed := false
			for _, ev := range rules.Enum {
				if s == ev {
					allowed = true
					break
				}
			}
			if !allowed {
				return fail(ErrEnumInvalid, fmt.Sprintf("value '%s' is not allowed", s))
			}
		}
	}
	if n, ok := v.(float64); ok {
		if rules.Min != nil && n < *rules.Min {
			return fail(ErrOutOfRange, fmt.Sprintf("must be >= %v", *rules.Min))
		}
		if rules.Max != nil && n > *rules.Max {
			return fail(ErrOutOfRange, fmt.Sprintf("must be <= %v", *rules.Max))
		}
	}
	if s, ok := v.(string); ok {
		l := utf8.RuneCountInString(s)
		if rules.MinLength != nil && l < *rules.MinLength {
			return fail(ErrLength, fmt.Sprintf("must be at least %d characters", *rules.MinLength))
		}
		if rules.MaxLength != nil && l > *rules.MaxLength {
			return fail(ErrLength, fmt.Sprintf("must be at most %d characters", *rules.MaxLength))
		}
		if rules.Pattern != "" {
			re, err := regexp.Compile(rules.Pattern)
			if err != nil {
				return fail(ErrPattern, "has invalid pattern in schema")
			}
			if !re.MatchString(s) {
				return fail(ErrPattern, "does not match pattern")
			}
		}
	}
	return nil
}

// coerceParam приводит строку из query string к типу объявленного поля;
// если не получилось, возвращает строку как есть.
func coerceParam(src schema.DataSource, field, raw string) any {
	f, ok := src.Field(field)
	if !ok {
		return raw
	}
	switch f.Type {
	case schema.TypeNumber, schema.TypeCurrency, schema.TypePercentage,
		schema.TypeBoolean, schema.TypeDate, schema.TypeDatetime:
		if v, err := coerceValue(f, raw); err == nil {
			return v
		}
	}
	return raw
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.New("must be string")
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.New("must be number")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.New("must be number")
		}
		return f, nil
	}
	if n, ok := filter.ToNumber(v); ok {
		if _, isTime := v.(time.Time); !isTime {
			return n, nil
		}
	}
	return 0, errors.New("must be number")
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, errors.New("must be boolean")
}

// coerceFilter возвращает копию дерева, в которой строковые операнды
// приведены к типам объявленных полей (даты в JSON приходят строками).
// Исходное дерево не меняется: оно может принадлежать представлению в реестре.
func coerceFilter(src schema.DataSource, g *filter.Group) *filter.Group {
	if g == nil {
		return nil
	}
	out := &filter.Group{Logic: g.Logic, Filters: make([]filter.Filter, 0, len(g.Filters))}
	for _, ch := range g.Filters {
		switch n := ch.(type) {
		case *filter.Group:
			out.Filters = append(out.Filters, coerceFilter(src, n))
		case *filter.Condition:
			c := *n
			switch c.Operator {
			case filter.OpContains, filter.OpNotContains, filter.OpStartsWith, filter.OpEndsWith, filter.OpRegex:
			default:
				c.Value = coerceOperand(src, c.Field, c.Value)
			}
			out.Filters = append(out.Filters, &c)
		}
	}
	return out
}

func coerceOperand(src schema.DataSource, field string, v any) any {
	switch t := v.(type) {
	case string:
		return coerceParam(src, field, t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = coerceOperand(src, field, e)
		}
		return out
	}
	return v
}
