package records

import (
	"sort"
	"strings"
	"time"

	"dataview/internal/filter"
	"dataview/internal/schema"
)

type Record = filter.Record

// ==== Сортировка с политикой nulls ====

func isNull(v any, ok bool) bool { return !ok || v == nil }

// compareValues сравнивает два не-null значения: числа: численно,
// время: хронологически, строки: лексикографически, bool: false < true.
// Разнотипные значения сравниваются по строковому представлению.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return +1
			}
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if fa, ok := filter.ToNumber(a); ok {
		if fb, ok := filter.ToNumber(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return +1
			}
			return 0
		}
	}
	return strings.Compare(filter.ToString(a), filter.ToString(b))
}

// сравнение двух записей по одному ключу: null размещается по NullsFirst
// (по умолчанию: в конец) независимо от направления; desc инвертирует
// только сравнение не-null значений.
func cmpByKey(a, b Record, key schema.SortDefinition) int {
	va, oka := filter.Resolve(a, key.Field)
	vb, okb := filter.Resolve(b, key.Field)

	na := isNull(va, oka)
	nb := isNull(vb, okb)

	if na && nb {
		return 0
	}
	if na != nb {
		if key.NullsFirst {
			if na {
				return -1
			}
			return +1
		}
		if na {
			return +1 // a=null → в конец
		}
		return -1
	}

	rel := compareValues(va, vb)
	if key.Direction == schema.Desc {
		rel = -rel
	}
	return rel
}

// Sort: стабильная мультисортировка. Возвращает новый срез, вход не меняется.
func Sort(records []Record, sorts []schema.SortDefinition) []Record {
	out := append([]Record(nil), records...)
	if len(sorts) == 0 {
		return out
	}
	keys := make([]schema.SortDefinition, 0, len(sorts))
	for _, k := range sorts {
		if k.Field != "" {
			keys = append(keys, k)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			if c := cmpByKey(out[i], out[j], k); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}
