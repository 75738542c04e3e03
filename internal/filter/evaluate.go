package filter

import (
	"regexp"
	"strings"
)

// Resolve достаёт значение по пути "a.b.c". Если любой промежуточный
// сегмент nil или не объект: результат «не определено» (ok=false).
func Resolve(record Record, path string) (any, bool) {
	if record == nil {
		return nil, false
	}
	if v, ok := record[path]; ok || !strings.Contains(path, ".") {
		return v, ok
	}
	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		m, ok := asStringMap(cur)
		if !ok || m == nil {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
		if cur == nil {
			// nil посреди пути: дальше идти некуда; nil в конце: это null
			continue
		}
	}
	return cur, true
}

// Evaluate вычисляет любой узел дерева против одной записи.
func Evaluate(record Record, f Filter) bool {
	switch n := f.(type) {
	case nil:
		return true
	case *Condition:
		return EvaluateCondition(record, n)
	case *Group:
		return EvaluateGroup(record, n)
	default:
		return false
	}
}

// EvaluateGroup: and: все дети true (пустая группа: true),
// or: хотя бы один (пустая группа: false).
func EvaluateGroup(record Record, g *Group) bool {
	if g == nil {
		return true
	}
	switch g.Logic {
	case LogicAnd, "":
		for _, ch := range g.Filters {
			if !Evaluate(record, ch) {
				return false
			}
		}
		return true
	case LogicOr:
		for _, ch := range g.Filters {
			if Evaluate(record, ch) {
				return true
			}
		}
		return false
	}
	return false
}

// EvaluateCondition проверяет лист. Неизвестный оператор: false (fail-closed).
func EvaluateCondition(record Record, c *Condition) bool {
	if c == nil {
		return true
	}
	got, found := Resolve(record, c.Field)
	if !found {
		got = nil
	}
	want := c.Value

	switch c.Operator {
	case OpEq:
		return Equal(got, want)
	case OpNe:
		return !Equal(got, want)

	case OpGt, OpGte, OpLt, OpLte:
		gv, ok1 := ToNumber(got)
		wv, ok2 := ToNumber(want)
		if !ok1 || !ok2 {
			return false
		}
		switch c.Operator {
		case OpGt:
			return gv > wv
		case OpGte:
			return gv >= wv
		case OpLt:
			return gv < wv
		default:
			return gv <= wv
		}

	case OpContains:
		return strings.Contains(lower(got), lower(want))
	case OpNotContains:
		return !strings.Contains(lower(got), lower(want))
	case OpStartsWith:
		return strings.HasPrefix(lower(got), lower(want))
	case OpEndsWith:
		return strings.HasSuffix(lower(got), lower(want))

	case OpIn, OpNotIn:
		list, ok := asSlice(want)
		if !ok {
			return false
		}
		member := false
		for _, it := range list {
			if Equal(got, it) {
				member = true
				break
			}
		}
		if c.Operator == OpIn {
			return member
		}
		return !member

	case OpIsNull:
		return got == nil
	case OpIsNotNull:
		return got != nil

	case OpBetween:
		bounds, ok := asSlice(want)
		if !ok || len(bounds) != 2 {
			return false
		}
		gv, ok1 := ToNumber(got)
		lo, ok2 := ToNumber(bounds[0])
		hi, ok3 := ToNumber(bounds[1])
		if !ok1 || !ok2 || !ok3 {
			return false
		}
		return gv >= lo && gv <= hi

	case OpRegex:
		re, err := regexp.Compile(ToString(want))
		if err != nil {
			return false
		}
		return re.MatchString(ToString(got))
	}
	return false
}

// Apply возвращает новый срез записей, удовлетворяющих фильтру. Вход не меняется.
func Apply(records []Record, f Filter) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if Evaluate(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func lower(v any) string { return strings.ToLower(ToString(v)) }
