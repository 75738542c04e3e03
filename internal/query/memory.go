package query

import (
	"context"
	"strings"

	"dataview/internal/filter"
	"dataview/internal/records"
	"dataview/internal/schema"
)

// MemoryExecutor исполняет CompiledQuery над записями в памяти: фильтр,
// группировка с агрегатами, HAVING, сортировка, пагинация. Нужен для
// api-источников и для проверки представлений без базы.
type MemoryExecutor struct {
	Rows []filter.Record
	// Columns: колонки представления; по ним считаются Result.Aggregates.
	Columns []schema.ColumnDefinition
}

func (m *MemoryExecutor) Execute(ctx context.Context, q CompiledQuery) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.Joins) > 0 {
		return nil, &InvalidQueryError{Reason: "joins are not supported by the in-memory executor"}
	}

	rows := m.Rows
	if q.Filters != nil {
		rows = filter.Apply(rows, q.Filters)
	}

	var aggs map[string]any
	if len(m.Columns) > 0 {
		var err error
		if aggs, err = records.ColumnAggregates(rows, m.Columns); err != nil {
			return nil, err
		}
	}

	specs, plain := splitAggregates(q.Fields)
	switch {
	case len(q.Groups) > 0:
		grouped, err := records.AggregateGroups(records.GroupRecords(rows, q.Groups), q.Groups, specs)
		if err != nil {
			return nil, err
		}
		rows = grouped
		if q.Having != nil {
			rows = filter.Apply(rows, q.Having)
		}
	case len(specs) > 0:
		// агрегаты без GROUP BY сворачивают всю выборку в одну строку
		row := make(filter.Record, len(specs))
		for _, s := range specs {
			v, err := records.Aggregate(rows, s.Field, s.Func)
			if err != nil {
				return nil, err
			}
			row[s.As] = v
		}
		rows = []filter.Record{row}
	}

	rows = records.Sort(rows, q.Sorts)
	total := len(rows)
	// с residual страницу отрезает Execute после дофильтрации
	if q.Residual == nil {
		rows = paginate(rows, q.Limit, q.Offset)
	}
	if len(q.Groups) == 0 && len(specs) == 0 && len(plain) > 0 {
		rows = project(rows, plain)
	}
	return &Result{Data: rows, Total: total, Aggregates: aggs}, nil
}

func splitAggregates(fields []string) (specs []records.AggregateSpec, plain []string) {
	for _, f := range fields {
		fn, inner, ok := schema.AggregateExpr(f)
		if !ok {
			plain = append(plain, f)
			continue
		}
		specs = append(specs, records.AggregateSpec{
			Field: inner,
			Func:  records.AggregateFunc(fn),
			As:    strings.TrimSpace(f),
		})
	}
	return specs, plain
}

func project(rows []filter.Record, fields []string) []filter.Record {
	out := make([]filter.Record, len(rows))
	for i, r := range rows {
		p := make(filter.Record, len(fields))
		for _, f := range fields {
			if v, ok := filter.Resolve(r, f); ok {
				p[f] = v
			}
		}
		out[i] = p
	}
	return out
}
