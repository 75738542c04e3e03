package duckdb

import (
	"context"
	"sort"
	"testing"

	"dataview/internal/filter"
	"dataview/internal/query"
	"dataview/internal/schema"
	"dataview/internal/sqlexec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketSource() schema.DataSource {
	return schema.DataSource{
		ID:     "tickets",
		Kind:   schema.KindTable,
		Entity: "tickets",
		Fields: []schema.FieldDefinition{
			{Name: "id", Type: schema.TypeNumber},
			{Name: "status", Type: schema.TypeString},
			{Name: "title", Type: schema.TypeString},
			{Name: "amount", Type: schema.TypeNumber},
			{Name: "owner", Type: schema.TypeString},
		},
	}
}

// строки в нижнем регистре: LIKE в SQL чувствителен к регистру, вычислитель нет.
// status/amount без NULL: ne/notIn по NULL в SQL дают UNKNOWN.
func ticketRows() []filter.Record {
	return []filter.Record{
		{"id": 1, "status": "open", "title": "disk full on db01", "amount": 10.0, "owner": "alice"},
		{"id": 2, "status": "closed", "title": "cpu spike", "amount": 25.5, "owner": nil},
		{"id": 3, "status": "open", "title": "dns flapping", "amount": 3.0, "owner": "bob"},
		{"id": 4, "status": "pending", "title": "disk latency", "amount": 40.0, "owner": "carol"},
		{"id": 5, "status": "closed", "title": "backup failed", "amount": 0.0, "owner": nil},
		{"id": 6, "status": "open", "title": "cert expiry", "amount": 18.0, "owner": "alice"},
	}
}

func openLoaded(t *testing.T) *sqlexec.Executor {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, CreateTable(ctx, db, ticketSource()))
	require.NoError(t, Load(ctx, db, ticketSource(), ticketRows()))
	return NewExecutor(db)
}

func ids(rows []filter.Record) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		n, _ := filter.ToNumber(r["id"])
		out = append(out, int(n))
	}
	sort.Ints(out)
	return out
}

func TestSQLMatchesEvaluator(t *testing.T) {
	exec := openLoaded(t)

	tests := []struct {
		name string
		f    filter.Filter
	}{
		{"eq", filter.Where("status", filter.OpEq, "open")},
		{"ne", filter.Where("status", filter.OpNe, "open")},
		{"gt", filter.Where("amount", filter.OpGt, 10)},
		{"gte", filter.Where("amount", filter.OpGte, 10)},
		{"lt", filter.Where("amount", filter.OpLt, 18)},
		{"lte", filter.Where("amount", filter.OpLte, 18)},
		{"contains", filter.Where("title", filter.OpContains, "disk")},
		{"startsWith", filter.Where("title", filter.OpStartsWith, "d")},
		{"endsWith", filter.Where("title", filter.OpEndsWith, "ed")},
		{"in", filter.Where("status", filter.OpIn, []any{"open", "pending"})},
		{"notIn", filter.Where("status", filter.OpNotIn, []any{"open", "pending"})},
		{"isNull", filter.Where("owner", filter.OpIsNull, nil)},
		{"isNotNull", filter.Where("owner", filter.OpIsNotNull, nil)},
		{"between", filter.Where("amount", filter.OpBetween, []any{3, 18})},
		{"nested", filter.Or(
			filter.And(filter.Where("status", filter.OpEq, "open"), filter.Where("amount", filter.OpGte, 10)),
			filter.And(filter.Where("owner", filter.OpIsNull, nil), filter.Where("title", filter.OpContains, "cpu")),
		)},
		{"empty or", filter.Or()},
		{"empty in", filter.Where("status", filter.OpIn, []any{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := query.NewBuilder(ticketSource()).Where(tt.f).Build()
			require.NoError(t, err)

			res, err := query.Execute(context.Background(), exec, q)
			require.NoError(t, err)

			want := filter.Apply(ticketRows(), tt.f)
			assert.Equal(t, ids(want), ids(res.Data), q.SQL)
		})
	}
}

func TestExecutorPagingAndCount(t *testing.T) {
	exec := openLoaded(t)

	q, err := query.NewBuilder(ticketSource()).
		Select("id", "status").
		Where(filter.Where("status", filter.OpNe, "pending")).
		OrderBy(schema.SortDefinition{Field: "id", Direction: schema.Desc}).
		Limit(2).Offset(2).
		Build()
	require.NoError(t, err)

	res, err := query.Execute(context.Background(), exec, q)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, []int{2, 3}, ids(res.Data))
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, "open", res.Data[0]["status"])
}

func TestExecutorResidual(t *testing.T) {
	exec := openLoaded(t)

	q, err := query.NewBuilder(ticketSource()).
		Where(filter.And(
			filter.Where("status", filter.OpEq, "open"),
			filter.Where("title", filter.OpRegex, "^d"),
		)).
		Build()
	require.NoError(t, err)

	res, err := query.Execute(context.Background(), exec, q)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids(res.Data))
	assert.Equal(t, 2, res.Total)
}

func TestExecutorGroupBy(t *testing.T) {
	exec := openLoaded(t)

	q, err := query.NewBuilder(ticketSource()).
		Select("status", "count(*)").
		GroupBy("status").
		Having(filter.Where("count(*)", filter.OpGt, 1)).
		OrderBy(schema.SortDefinition{Field: "status"}).
		Build()
	require.NoError(t, err)

	res, err := query.Execute(context.Background(), exec, q)
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "closed", res.Data[0]["status"])
	// имя колонки агрегата зависит от движка, берём любую кроме status
	var count any
	for k, v := range res.Data[0] {
		if k != "status" {
			count = v
		}
	}
	n, ok := filter.ToNumber(count)
	require.True(t, ok)
	assert.Equal(t, 2.0, n)
}
