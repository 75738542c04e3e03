package query

import (
	"context"
	"testing"

	"dataview/internal/filter"
	"dataview/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryRows() []filter.Record {
	return []filter.Record{
		{"id": "1", "status": "open", "owner": "ann", "amount": 10.0, "title": "disk full"},
		{"id": "2", "status": "closed", "owner": "bob", "amount": 5.0, "title": "draft cpu"},
		{"id": "3", "status": "open", "owner": nil, "amount": 7.5, "title": "dns"},
		{"id": "4", "status": "pending", "owner": "ann", "amount": 1.0, "title": "ram"},
		{"id": "5", "status": "open", "owner": "cat", "amount": 2.5, "title": "draft net"},
	}
}

func TestMemoryExecutorView(t *testing.T) {
	view := openTicketsView()
	view.Columns = append(view.Columns, schema.ColumnDefinition{Field: "amount", Aggregate: "sum", Visible: boolp(false)})
	c := newTestCompiler(t, view)

	q, err := c.CompileView(view.ID, &Overrides{Page: 1, PageSize: 2})
	require.NoError(t, err)

	exec := &MemoryExecutor{Rows: memoryRows(), Columns: view.Columns}
	res, err := Execute(context.Background(), exec, q)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, []filter.Record{
		{"id": "1", "status": "open", "owner": "ann"},
		{"id": "3", "status": "open", "owner": nil},
	}, res.Data)
	assert.Equal(t, map[string]any{"amount": 20.0}, res.Aggregates)
}

func TestMemoryExecutorGroupByHaving(t *testing.T) {
	q, err := NewBuilder(ticketsSource()).
		Select("status", "count(*)", "sum(amount)").
		GroupBy("status").
		Having(filter.Where("count(*)", filter.OpGte, 1)).
		OrderBy(schema.SortDefinition{Field: "count(*)", Direction: schema.Desc}).
		Build()
	require.NoError(t, err)

	res, err := (&MemoryExecutor{Rows: memoryRows()}).Execute(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, filter.Record{"status": "open", "count(*)": 3, "sum(amount)": 20.0}, res.Data[0])
	assert.Equal(t, 3, res.Total)

	q, err = NewBuilder(ticketsSource()).
		Select("status", "count(*)").
		GroupBy("status").
		Having(filter.Where("count(*)", filter.OpGt, 1)).
		Build()
	require.NoError(t, err)
	res, err = (&MemoryExecutor{Rows: memoryRows()}).Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []filter.Record{{"status": "open", "count(*)": 3}}, res.Data)
}

func TestMemoryExecutorAggregatesWithoutGroups(t *testing.T) {
	q, err := NewBuilder(ticketsSource()).
		Select("count(*)", "max(amount)", "count(owner)").
		Build()
	require.NoError(t, err)

	res, err := (&MemoryExecutor{Rows: memoryRows()}).Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []filter.Record{{"count(*)": 5, "max(amount)": 10.0, "count(owner)": 4}}, res.Data)
}

func TestMemoryExecutorResidualKeepsFilterFields(t *testing.T) {
	q, err := NewBuilder(ticketsSource()).
		Select("id").
		Where(filter.Where("title", filter.OpNotContains, "draft")).
		OrderBy(schema.SortDefinition{Field: "id", Direction: schema.Desc}).
		Limit(2).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title"}, q.Fields)
	assert.Equal(t, "SELECT id, title FROM tickets ORDER BY id DESC NULLS LAST", q.SQL)

	res, err := Execute(context.Background(), &MemoryExecutor{Rows: memoryRows()}, q)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []filter.Record{
		{"id": "4", "title": "ram"},
		{"id": "3", "title": "dns"},
	}, res.Data)
}

func TestMemoryExecutorErrors(t *testing.T) {
	q, err := NewBuilder(ticketsSource()).
		Join(JoinDefinition{Source: "teams", LeftField: "team_id", RightField: "teams.id"}).
		Build()
	require.NoError(t, err)
	_, err = (&MemoryExecutor{}).Execute(context.Background(), q)
	var iq *InvalidQueryError
	assert.ErrorAs(t, err, &iq)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q, err = NewBuilder(ticketsSource()).Build()
	require.NoError(t, err)
	_, err = (&MemoryExecutor{}).Execute(ctx, q)
	assert.ErrorIs(t, err, context.Canceled)
}
