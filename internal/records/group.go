package records

import (
	"strings"

	"dataview/internal/filter"
)

// Group: корзина записей с одинаковым составным ключом.
type Group struct {
	Key     string   `json:"key"`
	Values  []any    `json:"values"` // значения полей группировки, в порядке полей
	Records []Record `json:"records"`
}

// GroupKey: "|"-склейка строковых значений полей; null/не определено -> "null".
func GroupKey(r Record, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := filter.Resolve(r, f)
		if isNull(v, ok) {
			parts[i] = "null"
			continue
		}
		parts[i] = filter.ToString(v)
	}
	return strings.Join(parts, "|")
}

// GroupRecords раскладывает записи по составному ключу. Группы идут
// в порядке первого появления ключа, внутри группы: исходный порядок.
func GroupRecords(records []Record, fields []string) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, r := range records {
		key := GroupKey(r, fields)
		i, ok := index[key]
		if !ok {
			values := make([]any, len(fields))
			for j, f := range fields {
				values[j], _ = filter.Resolve(r, f)
			}
			groups = append(groups, Group{Key: key, Values: values})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// GroupMap: то же, что GroupRecords, но в виде map (порядок ключей не сохраняется).
func GroupMap(records []Record, fields []string) map[string][]Record {
	out := make(map[string][]Record)
	for _, g := range GroupRecords(records, fields) {
		out[g.Key] = g.Records
	}
	return out
}
