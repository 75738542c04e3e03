package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"dataview/internal/filter"
	"dataview/internal/query"
	"dataview/internal/schema"
)

// служебные ключи query string, не являющиеся фильтрами
var reservedParams = map[string]struct{}{
	"_page": {}, "_pageSize": {}, "_sort": {}, "nulls": {}, "_format": {},
	"page": {}, "pageSize": {}, "sort": {},
}

// ParseOverrides разбирает query string в Overrides:
//
//	status=open                 -> status eq open
//	amount__gte=1000            -> amount gte 1000
//	status__in=open,pending     -> status in [open pending]
//	amount__between=10,20       -> amount between [10 20]
//	owner__isNull               -> owner isNull
//	_page=2&_pageSize=50&_sort=-amount,id&nulls=first
//
// Значения приводятся к типу объявленного поля источника.
func ParseOverrides(src schema.DataSource, q url.Values) (query.Overrides, error) {
	var ov query.Overrides

	if v := first(q, "_page", "page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ov, badRequest("invalid _page: " + v)
		}
		ov.Page = n
	}
	if v := first(q, "_pageSize", "pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 1000 {
			return ov, badRequest("invalid _pageSize: " + v)
		}
		ov.PageSize = n
	}

	nullsFirst := strings.EqualFold(strings.TrimSpace(q.Get("nulls")), "first")
	if sv := first(q, "_sort", "sort"); sv != "" {
		for _, p := range strings.Split(sv, ",") {
			p = strings.TrimSpace(p)
			dir := schema.Asc
			if strings.HasPrefix(p, "-") {
				dir = schema.Desc
				p = strings.TrimPrefix(p, "-")
			} else {
				p = strings.TrimPrefix(p, "+")
			}
			if p != "" {
				ov.Sorts = append(ov.Sorts, schema.SortDefinition{Field: p, Direction: dir, NullsFirst: nullsFirst})
			}
		}
	}

	// стабильный порядок условий: по ключу
	keys := make([]string, 0, len(q))
	for k := range q {
		if _, skip := reservedParams[k]; !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var conds []filter.Filter
	for _, key := range keys {
		field, op := key, filter.OpEq
		if i := strings.LastIndex(key, "__"); i > 0 {
			field, op = key[:i], filter.Operator(key[i+2:])
		}
		if !op.Known() {
			return ov, &query.UnsupportedOperatorError{Field: field, Operator: op}
		}
		for _, raw := range q[key] {
			c, err := paramCondition(src, field, op, raw)
			if err != nil {
				return ov, err
			}
			conds = append(conds, c)
		}
	}
	if len(conds) > 0 {
		ov.Filters = filter.And(conds...)
	}
	return ov, nil
}

func paramCondition(src schema.DataSource, field string, op filter.Operator, raw string) (*filter.Condition, error) {
	switch op {
	case filter.OpIsNull, filter.OpIsNotNull:
		return filter.Where(field, op, nil), nil
	case filter.OpIn, filter.OpNotIn, filter.OpBetween:
		var list []any
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, coerceParam(src, field, p))
			}
		}
		if op == filter.OpBetween && len(list) != 2 {
			return nil, badRequest(field + "__between expects two comma-separated values")
		}
		if list == nil {
			list = []any{}
		}
		return filter.Where(field, op, list), nil
	case filter.OpContains, filter.OpNotContains, filter.OpStartsWith, filter.OpEndsWith, filter.OpRegex:
		return filter.Where(field, op, raw), nil
	}
	return filter.Where(field, op, coerceParam(src, field, raw)), nil
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
