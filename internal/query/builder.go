package query

import (
	"strconv"
	"strings"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

// Builder собирает CompiledQuery цепочкой вызовов. Ошибки аргументов
// копятся и возвращаются из Build.
type Builder struct {
	source schema.DataSource
	fields []string
	where  *filter.Group
	sorts  []schema.SortDefinition
	groups []string
	having *filter.Group
	limit  *int
	offset *int
	joins  []JoinDefinition
	err    error
}

func NewBuilder(source schema.DataSource) *Builder {
	return &Builder{source: source}
}

func (b *Builder) Select(fields ...string) *Builder {
	b.fields = append(b.fields, fields...)
	return b
}

// Where добавляет фильтр. Голый лист оборачивается в and-группу;
// повторный вызов объединяет условия через AND.
func (b *Builder) Where(f filter.Filter) *Builder {
	g := filter.Normalize(f)
	if g == nil {
		return b
	}
	if b.where == nil {
		b.where = g
	} else {
		b.where = filter.And(b.where, g)
	}
	return b
}

func (b *Builder) OrderBy(sorts ...schema.SortDefinition) *Builder {
	b.sorts = append(b.sorts, sorts...)
	return b
}

func (b *Builder) GroupBy(fields ...string) *Builder {
	b.groups = append(b.groups, fields...)
	return b
}

func (b *Builder) Having(f filter.Filter) *Builder {
	g := filter.Normalize(f)
	if g == nil {
		return b
	}
	if b.having == nil {
		b.having = g
	} else {
		b.having = filter.And(b.having, g)
	}
	return b
}

func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.fail(&InvalidQueryError{Reason: "limit must be >= 0, got " + strconv.Itoa(n)})
		return b
	}
	b.limit = &n
	return b
}

func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		b.fail(&InvalidQueryError{Reason: "offset must be >= 0, got " + strconv.Itoa(n)})
		return b
	}
	b.offset = &n
	return b
}

func (b *Builder) Join(j JoinDefinition) *Builder {
	if j.Type == "" {
		j.Type = JoinInner
	}
	b.joins = append(b.joins, j)
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build проверяет идентификаторы, отделяет residual-фильтр и компилирует SQL.
func (b *Builder) Build() (CompiledQuery, error) {
	if b.err != nil {
		return CompiledQuery{}, b.err
	}
	if err := b.validate(); err != nil {
		return CompiledQuery{}, err
	}

	sqlWhere, residual := splitResidual(b.where)
	if residual != nil && len(b.groups) > 0 {
		c := filter.Conditions(residual)[0]
		return CompiledQuery{}, &UnsupportedOperatorError{
			Field: c.Field, Operator: c.Operator,
			Reason: "in-memory operators cannot be combined with GROUP BY",
		}
	}
	if b.having != nil {
		for _, c := range filter.Conditions(b.having) {
			if c.Operator.InMemoryOnly() {
				return CompiledQuery{}, &UnsupportedOperatorError{
					Field: c.Field, Operator: c.Operator,
					Reason: "in-memory operators are not allowed in HAVING",
				}
			}
		}
	}

	fields := append([]string(nil), b.fields...)
	if residual != nil && len(fields) > 0 {
		// поля residual должны прийти из выборки, иначе дофильтровать нечем
		fields = withResidualFields(fields, residual, b.source)
	}

	var params []any
	var base strings.Builder

	base.WriteString("SELECT ")
	if len(fields) == 0 {
		base.WriteString("*")
	} else {
		base.WriteString(strings.Join(fields, ", "))
	}
	base.WriteString(" FROM ")
	base.WriteString(b.source.Table())

	for _, j := range b.joins {
		base.WriteString(" " + strings.ToUpper(string(j.Type)) + " JOIN " + j.Source +
			" ON " + j.LeftField + " = " + j.RightField)
	}

	if sqlWhere != nil {
		w, err := compileGroup(sqlWhere, &params)
		if err != nil {
			return CompiledQuery{}, err
		}
		base.WriteString(" WHERE " + w)
	}
	if len(b.groups) > 0 {
		base.WriteString(" GROUP BY " + strings.Join(b.groups, ", "))
	}
	if b.having != nil {
		h, err := compileGroup(b.having, &params)
		if err != nil {
			return CompiledQuery{}, err
		}
		base.WriteString(" HAVING " + h)
	}

	full := base.String()
	if len(b.sorts) > 0 {
		parts := make([]string, 0, len(b.sorts))
		for _, s := range b.sorts {
			dir := "ASC"
			if s.Direction == schema.Desc {
				dir = "DESC"
			}
			nulls := "NULLS LAST"
			if s.NullsFirst {
				nulls = "NULLS FIRST"
			}
			parts = append(parts, s.Field+" "+dir+" "+nulls)
		}
		full += " ORDER BY " + strings.Join(parts, ", ")
	}
	// при residual пагинация выполняется в памяти после дофильтрации
	if residual == nil {
		if b.limit != nil {
			full += " LIMIT " + strconv.Itoa(*b.limit)
		}
		if b.offset != nil {
			full += " OFFSET " + strconv.Itoa(*b.offset)
		}
	}

	if params == nil {
		params = []any{}
	}
	return CompiledQuery{
		Source:   b.source,
		Fields:   fields,
		Filters:  b.where,
		Sorts:    append([]schema.SortDefinition(nil), b.sorts...),
		Groups:   append([]string(nil), b.groups...),
		Having:   b.having,
		Limit:    b.limit,
		Offset:   b.offset,
		Joins:    append([]JoinDefinition(nil), b.joins...),
		SQL:      full,
		Params:   params,
		CountSQL: "SELECT COUNT(*) FROM (" + base.String() + ") AS counted",
		Residual: residual,
	}, nil
}

// splitResidual отделяет от корневой AND-конъюнкции ветви с операторами,
// не имеющими SQL-формы. Ветвь OR с таким оператором уходит целиком.
func splitResidual(g *filter.Group) (sqlPart, residual *filter.Group) {
	if g == nil || !hasInMemoryOnly(g) {
		return g, nil
	}
	if g.Logic == filter.LogicOr {
		return nil, g
	}
	var keep, rest []filter.Filter
	for _, ch := range g.Filters {
		if hasInMemoryOnly(ch) {
			rest = append(rest, ch)
		} else {
			keep = append(keep, ch)
		}
	}
	if len(keep) > 0 {
		sqlPart = filter.And(keep...)
	}
	return sqlPart, filter.And(rest...)
}

func withResidualFields(fields []string, residual *filter.Group, src schema.DataSource) []string {
	have := make(map[string]bool, len(fields))
	for _, f := range fields {
		have[f] = true
	}
	for _, c := range filter.Conditions(residual) {
		name := c.Field
		// вложенный путь по json-полю: выбираем само поле
		if i := strings.IndexByte(name, '.'); i > 0 && src.HasField(name[:i]) {
			name = name[:i]
		}
		if !have[name] {
			have[name] = true
			fields = append(fields, name)
		}
	}
	return fields
}

func hasInMemoryOnly(f filter.Filter) bool {
	found := false
	filter.Walk(f, func(n filter.Filter) bool {
		if c, ok := n.(*filter.Condition); ok && c.Operator.InMemoryOnly() {
			found = true
			return false
		}
		return true
	})
	return found
}
