package query

import (
	"strings"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

// compileGroup рендерит группу как "(c1 AND c2 ...)" и дописывает параметры
// в params тем же обходом слева направо, что и текст.
func compileGroup(g *filter.Group, params *[]any) (string, error) {
	if len(g.Filters) == 0 {
		// пустая and: истина, пустая or: ложь, как у вычислителя
		if g.Logic == filter.LogicOr {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}
	sep := " AND "
	if g.Logic == filter.LogicOr {
		sep = " OR "
	}
	parts := make([]string, 0, len(g.Filters))
	for _, ch := range g.Filters {
		var (
			s   string
			err error
		)
		switch n := ch.(type) {
		case *filter.Group:
			s, err = compileGroup(n, params)
		case *filter.Condition:
			s, err = compileCondition(n, params)
		}
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

var comparisonSQL = map[filter.Operator]string{
	filter.OpEq:  "=",
	filter.OpNe:  "!=",
	filter.OpGt:  ">",
	filter.OpGte: ">=",
	filter.OpLt:  "<",
	filter.OpLte: "<=",
}

func compileCondition(c *filter.Condition, params *[]any) (string, error) {
	field := c.Field

	if op, ok := comparisonSQL[c.Operator]; ok {
		*params = append(*params, c.Value)
		return field + " " + op + " ?", nil
	}

	switch c.Operator {
	case filter.OpContains:
		*params = append(*params, "%"+filter.ToString(c.Value)+"%")
		return field + " LIKE ?", nil
	case filter.OpStartsWith:
		*params = append(*params, filter.ToString(c.Value)+"%")
		return field + " LIKE ?", nil
	case filter.OpEndsWith:
		*params = append(*params, "%"+filter.ToString(c.Value))
		return field + " LIKE ?", nil

	case filter.OpIn, filter.OpNotIn:
		list, ok := filter.AsSlice(c.Value)
		if !ok {
			return "", &UnsupportedOperatorError{Field: field, Operator: c.Operator, Reason: "value must be a list"}
		}
		if len(list) == 0 {
			// пустой IN () невалиден в SQL; сохраняем семантику членства
			if c.Operator == filter.OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		marks := make([]string, len(list))
		for i, v := range list {
			marks[i] = "?"
			*params = append(*params, v)
		}
		kw := " IN ("
		if c.Operator == filter.OpNotIn {
			kw = " NOT IN ("
		}
		return field + kw + strings.Join(marks, ",") + ")", nil

	case filter.OpIsNull:
		return field + " IS NULL", nil
	case filter.OpIsNotNull:
		return field + " IS NOT NULL", nil

	case filter.OpBetween:
		bounds, ok := filter.AsSlice(c.Value)
		if !ok || len(bounds) != 2 {
			return "", &UnsupportedOperatorError{Field: field, Operator: c.Operator, Reason: "value must be [min, max]"}
		}
		*params = append(*params, bounds[0], bounds[1])
		return field + " BETWEEN ? AND ?", nil

	case filter.OpNotContains, filter.OpRegex:
		return "", &UnsupportedOperatorError{Field: field, Operator: c.Operator, Reason: "no SQL form, evaluated in memory only"}
	}
	return "", &UnsupportedOperatorError{Field: field, Operator: c.Operator}
}

// validate проверяет все идентификаторы, которые попадут в SQL как есть.
func (b *Builder) validate() error {
	src := b.source
	if !schema.ValidIdentifier(src.Table()) {
		return &InvalidIdentifierError{Identifier: src.Table(), Reason: "source table name"}
	}

	prefixes := map[string]bool{src.Table(): true, src.ID: true}
	for _, j := range b.joins {
		if !j.Type.valid() {
			return &InvalidQueryError{Reason: "unknown join type " + string(j.Type)}
		}
		if !schema.ValidIdentifier(j.Source) {
			return &InvalidIdentifierError{Identifier: j.Source, Reason: "join source"}
		}
		prefixes[j.Source] = true
	}

	check := func(name string, allowAggregate bool) error {
		if allowAggregate {
			if _, inner, ok := schema.AggregateExpr(name); ok {
				if inner == "*" {
					return nil
				}
				name = inner
			}
		}
		if !schema.ValidIdentifier(name) {
			return &InvalidIdentifierError{Identifier: name, Reason: "not a safe SQL identifier"}
		}
		// api-источник без описанных полей: проверяем только форму имени
		if len(src.Fields) == 0 {
			return nil
		}
		if schema.Qualified(name) {
			prefix := name[:strings.IndexByte(name, '.')]
			if prefixes[prefix] || src.HasPath(name) {
				return nil
			}
			return &InvalidIdentifierError{Identifier: name, Reason: "unknown qualifier " + prefix}
		}
		if !src.HasField(name) {
			return &InvalidIdentifierError{Identifier: name, Reason: "not a declared field of " + src.ID}
		}
		return nil
	}

	for _, f := range b.fields {
		if err := check(f, true); err != nil {
			return err
		}
	}
	for _, j := range b.joins {
		for _, f := range []string{j.LeftField, j.RightField} {
			if !schema.ValidIdentifier(f) {
				return &InvalidIdentifierError{Identifier: f, Reason: "join field"}
			}
		}
	}
	for _, c := range filter.Conditions(b.where) {
		if err := check(c.Field, false); err != nil {
			return err
		}
	}
	for _, c := range filter.Conditions(b.having) {
		if err := check(c.Field, true); err != nil {
			return err
		}
	}
	for _, s := range b.sorts {
		if err := check(s.Field, true); err != nil {
			return err
		}
		if s.Direction != "" && s.Direction != schema.Asc && s.Direction != schema.Desc {
			return &InvalidQueryError{Reason: "unknown sort direction " + string(s.Direction)}
		}
	}
	for _, g := range b.groups {
		if err := check(g, false); err != nil {
			return err
		}
	}
	return nil
}
