package pg

import (
	"context"
	"testing"

	"dataview/internal/filter"
	"dataview/internal/query"
	"dataview/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresExecutor(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container test skipped in -short")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dataview"),
		postgres.WithUsername("dataview"),
		postgres.WithPassword("dataview"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sources := []schema.DataSource{ticketsSource(), teamsSource()}
	ddl, err := GenerateDDL(sources)
	require.NoError(t, err)
	require.NoError(t, ApplyDDL(ctx, db, ddl))
	// повторный прогон идемпотентен: дубликат FK пропускается
	require.NoError(t, ApplyDDL(ctx, db, ddl))

	_, err = db.ExecContext(ctx, `insert into ops.teams (id, name) values ('t1', 'core'), ('t2', 'edge')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `insert into ops.tickets (id, status, amount, team_id, deleted_at) values
		('a', 'open', 10.50, 't1', null),
		('b', 'open', 3.00, 't2', null),
		('c', 'closed', 7.25, 't1', null),
		('d', 'open', 99.00, 't1', now())`)
	require.NoError(t, err)

	reg := schema.NewRegistry()
	reg.Replace(sources, []schema.DataView{{
		ID:         "open",
		Source:     ticketsSource(),
		Columns:    []schema.ColumnDefinition{{Field: "id"}, {Field: "status"}, {Field: "amount"}},
		Filters:    filter.And(filter.Where("status", filter.OpEq, "open")),
		Sorts:      []schema.SortDefinition{{Field: "amount", Direction: schema.Desc}},
		Pagination: &schema.Pagination{Enabled: true, PageSize: 1},
	}})

	q, err := query.NewCompiler(reg).CompileView("open", &query.Overrides{Page: 2})
	require.NoError(t, err)

	res, err := query.Execute(ctx, NewExecutor(db), q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "b", res.Data[0]["id"])
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, res.TotalPages)
}
