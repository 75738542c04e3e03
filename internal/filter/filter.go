package filter

import (
	"fmt"
	"strings"
)

// Record: одна запись набора данных (JSON-объект после декодирования).
type Record = map[string]any

type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpIsNull      Operator = "isNull"
	OpIsNotNull   Operator = "isNotNull"
	OpBetween     Operator = "between"
	OpRegex       Operator = "regex"
)

var knownOperators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpGte: {}, OpLt: {}, OpLte: {},
	OpContains: {}, OpNotContains: {}, OpStartsWith: {}, OpEndsWith: {},
	OpIn: {}, OpNotIn: {}, OpIsNull: {}, OpIsNotNull: {}, OpBetween: {}, OpRegex: {},
}

// Known сообщает, входит ли оператор в закрытый список.
func (o Operator) Known() bool {
	_, ok := knownOperators[o]
	return ok
}

// InMemoryOnly: операторы без SQL-представления (только вычислитель).
func (o Operator) InMemoryOnly() bool {
	return o == OpNotContains || o == OpRegex
}

type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Filter: узел дерева фильтров: либо *Condition (лист), либо *Group.
// Внешние реализации запрещены маркерным методом.
type Filter interface {
	filterNode()
	String() string
}

// Condition: листовой предикат {field, operator, value}.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// Group: логическая группа AND/OR над дочерними узлами.
type Group struct {
	Logic   Logic    `json:"logic" yaml:"logic"`
	Filters []Filter `json:"filters" yaml:"filters"`
}

func (*Condition) filterNode() {}
func (*Group) filterNode()     {}

func (c *Condition) String() string {
	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return c.Field + " " + string(c.Operator)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Filters))
	for _, f := range g.Filters {
		parts = append(parts, f.String())
	}
	return "(" + strings.Join(parts, " "+strings.ToUpper(string(g.Logic))+" ") + ")"
}

// Where: короткий конструктор листа.
func Where(field string, op Operator, value any) *Condition {
	return &Condition{Field: field, Operator: op, Value: value}
}

func And(filters ...Filter) *Group { return &Group{Logic: LogicAnd, Filters: filters} }
func Or(filters ...Filter) *Group  { return &Group{Logic: LogicOr, Filters: filters} }

// Normalize приводит любой узел к группе: голый лист оборачивается в and-группу
// из одного элемента. nil остаётся nil.
func Normalize(f Filter) *Group {
	switch n := f.(type) {
	case nil:
		return nil
	case *Group:
		if n == nil {
			return nil
		}
		return n
	case *Condition:
		if n == nil {
			return nil
		}
		return And(n)
	default:
		return nil
	}
}

// Conjoin объединяет фильтры через AND, пропуская пустые.
// Ни один из входных фильтров не теряется и не изменяется.
func Conjoin(filters ...Filter) *Group {
	var kept []Filter
	for _, f := range filters {
		if g := Normalize(f); g != nil {
			kept = append(kept, g)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0].(*Group)
	}
	return And(kept...)
}

// Walk обходит дерево слева направо в глубину; fn возвращает false: обход прекращается.
func Walk(f Filter, fn func(Filter) bool) bool {
	if f == nil {
		return true
	}
	if !fn(f) {
		return false
	}
	if g, ok := f.(*Group); ok && g != nil {
		for _, child := range g.Filters {
			if !Walk(child, fn) {
				return false
			}
		}
	}
	return true
}

// Conditions возвращает все листья дерева в порядке обхода.
func Conditions(f Filter) []*Condition {
	var out []*Condition
	Walk(f, func(n Filter) bool {
		if c, ok := n.(*Condition); ok && c != nil {
			out = append(out, c)
		}
		return true
	})
	return out
}
