package records

import (
	"errors"
	"fmt"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggFirst AggregateFunc = "first"
	AggLast  AggregateFunc = "last"
)

var (
	ErrNotNumeric       = errors.New("aggregate: value is not numeric")
	ErrUnknownAggregate = errors.New("aggregate: unknown function")
)

// Aggregate сворачивает поле по набору записей. null/не определено
// отбрасываются до свёртки, поэтому count: это число не-null значений.
// Без значений: count/sum/avg -> 0, min/max/first/last -> nil.
// Поле "*" допустимо только для count.
func Aggregate(records []Record, field string, fn AggregateFunc) (any, error) {
	switch fn {
	case AggCount, AggSum, AggAvg, AggMin, AggMax, AggFirst, AggLast:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAggregate, fn)
	}
	// count(*) считает записи, а не значения
	if field == "*" {
		if fn != AggCount {
			return nil, fmt.Errorf("%w: %s(*)", ErrUnknownAggregate, fn)
		}
		return len(records), nil
	}
	values := make([]any, 0, len(records))
	for _, r := range records {
		if v, ok := filter.Resolve(r, field); !isNull(v, ok) {
			values = append(values, v)
		}
	}

	switch fn {
	case AggCount:
		return len(values), nil
	case AggFirst:
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case AggLast:
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	}

	nums := make([]float64, len(values))
	for i, v := range values {
		n, ok := filter.ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%v", ErrNotNumeric, field, v)
		}
		nums[i] = n
	}

	switch fn {
	case AggSum, AggAvg:
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		if fn == AggSum {
			return sum, nil
		}
		if len(nums) == 0 {
			return 0.0, nil
		}
		return sum / float64(len(nums)), nil
	case AggMin, AggMax:
		if len(nums) == 0 {
			return nil, nil
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if (fn == AggMin && n < best) || (fn == AggMax && n > best) {
				best = n
			}
		}
		return best, nil
	}
	return nil, nil
}

// AggregateSpec: одна свёртка в строке результата: As = fn(Field).
type AggregateSpec struct {
	Field string        `json:"field"`
	Func  AggregateFunc `json:"func"`
	As    string        `json:"as,omitempty"`
}

func (s AggregateSpec) alias() string {
	if s.As != "" {
		return s.As
	}
	return string(s.Func) + "(" + s.Field + ")"
}

// ColumnAggregates считает агрегаты колонок представления (Column.Aggregate) по набору.
func ColumnAggregates(records []Record, columns []schema.ColumnDefinition) (map[string]any, error) {
	out := make(map[string]any)
	for _, c := range columns {
		if c.Aggregate == "" {
			continue
		}
		v, err := Aggregate(records, c.Field, AggregateFunc(c.Aggregate))
		if err != nil {
			return nil, err
		}
		out[c.Field] = v
	}
	return out, nil
}

// AggregateGroups сворачивает каждую группу в одну строку:
// поля группировки + алиасы агрегатов.
func AggregateGroups(groups []Group, fields []string, specs []AggregateSpec) ([]Record, error) {
	rows := make([]Record, 0, len(groups))
	for _, g := range groups {
		row := make(Record, len(fields)+len(specs))
		for i, f := range fields {
			if i < len(g.Values) {
				row[f] = g.Values[i]
			}
		}
		for _, s := range specs {
			v, err := Aggregate(g.Records, s.Field, s.Func)
			if err != nil {
				return nil, err
			}
			row[s.alias()] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
