package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dataview/internal/filter"
	"dataview/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const opsDSL = `
# операционные источники
module ops

source teams: table pk=id label="Teams"
  id: string required
  name: string unique

source tickets: table entity=ops.tickets pk=id timestamps soft_delete
  id: string required
  status: enum[open, pending, closed] default=open indexed
  amount: money min=0
  title: text max_length=200 pattern='^[a-z ]+$'
  team_id: ref[teams] on_delete=set_null
  tags: array[enum[bug, ops]]
  meta: json   # произвольные атрибуты

source feed: api
  id: string
`

func TestParseSources(t *testing.T) {
	srcs, err := ParseSources(strings.NewReader(opsDSL))
	require.NoError(t, err)
	require.Len(t, srcs, 3)

	teams := srcs[0]
	assert.Equal(t, "ops.teams", teams.ID)
	assert.Equal(t, "Teams", teams.Name)
	assert.Equal(t, "ops.teams", teams.Entity)
	assert.Equal(t, "id", teams.PrimaryKey)
	assert.True(t, teams.Fields[0].Required)
	assert.True(t, teams.Fields[1].Unique)

	tickets := srcs[1]
	assert.Equal(t, schema.KindTable, tickets.Kind)
	assert.Equal(t, &schema.Timestamps{CreatedAt: "created_at", UpdatedAt: "updated_at"}, tickets.Timestamps)
	assert.Equal(t, &schema.SoftDelete{Field: "deleted_at"}, tickets.SoftDelete)
	require.Len(t, tickets.Fields, 7)

	status := tickets.Fields[1]
	assert.Equal(t, schema.TypeString, status.Type)
	assert.Equal(t, []string{"open", "pending", "closed"}, status.Validation.Enum)
	assert.Equal(t, "open", status.DefaultValue)
	assert.True(t, status.Indexed)

	amount := tickets.Fields[2]
	assert.Equal(t, schema.TypeCurrency, amount.Type)
	require.NotNil(t, amount.Validation.Min)
	assert.Equal(t, 0.0, *amount.Validation.Min)

	title := tickets.Fields[3]
	assert.Equal(t, schema.TypeString, title.Type)
	assert.Equal(t, 200, *title.Validation.MaxLength)
	assert.Equal(t, "^[a-z ]+$", title.Validation.Pattern)

	team := tickets.Fields[4]
	assert.Equal(t, schema.TypeRelation, team.Type)
	assert.Equal(t, &schema.Relation{Source: "ops.teams", Kind: "belongsTo", OnDelete: "set_null"}, team.Relation)

	tags := tickets.Fields[5]
	assert.Equal(t, schema.TypeArray, tags.Type)
	assert.Equal(t, "enum", tags.Validation.ElemType)
	assert.Equal(t, []string{"bug", "ops"}, tags.Validation.Enum)

	assert.Equal(t, schema.TypeJSON, tickets.Fields[6].Type)

	feed := srcs[2]
	assert.Equal(t, schema.KindAPI, feed.Kind)
	assert.Empty(t, feed.Entity)
}

func TestParseSourcesErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no module", "source a: table\n  id: string\n", "has no module"},
		{"unknown kind", "module m\nsource a: cube\n", "unknown source kind"},
		{"unknown type", "module m\nsource a: table\n  id: uuid\n", "unknown type"},
		{"unknown option", "module m\nsource a: table\n  id: string nullable\n", "unknown option"},
		{"bad min", "module m\nsource a: table\n  n: number min=abc\n", "min"},
		{"garbage", "module m\nsource a: table\n  ???\n", "cannot parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSources(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSplitOptionTokens(t *testing.T) {
	got := splitOptionTokens(`required label="Full name" pattern=^[A-Z0-9 _-]+$ default='a b'`)
	assert.Equal(t, []string{"required", `label="Full name"`, "pattern=^[A-Z0-9 _-]+$", "default='a b'"}, got)
}

const viewsYAML = `
sources:
  - id: crm.accounts
    name: Accounts
    kind: table
    entity: accounts
    fields:
      - {name: id, type: string}
      - {name: region, type: string}
views:
  - id: open-tickets
    name: Open tickets
    source: ops.tickets
    columns:
      - {field: id}
      - {field: amount, format: {type: currency, currency: EUR}, aggregate: sum}
      - {field: team_id, visible: false}
    filters:
      logic: and
      filters:
        - {field: status, operator: eq, value: open}
    sorts:
      - {field: amount, direction: desc}
    pagination: {enabled: true, pageSize: 50}
  - id: accounts-by-region
    name: Accounts
    source: crm.accounts
    columns: [{field: region}]
    groupBy: [region]
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ops/sources.dsl", opsDSL)
	writeFile(t, dir, "views.yaml", viewsYAML)
	writeFile(t, dir, "empty.yml", "")
	writeFile(t, dir, "README.md", "ignored")

	defs, err := LoadAll(dir)
	require.NoError(t, err)

	ids := make([]string, 0, len(defs.Sources))
	for _, s := range defs.Sources {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"crm.accounts", "ops.feed", "ops.teams", "ops.tickets"}, ids)

	require.Len(t, defs.Views, 2)
	byRegion := defs.Views[0]
	assert.Equal(t, "accounts-by-region", byRegion.ID)
	assert.Equal(t, "crm.accounts", byRegion.Source.ID)
	assert.Equal(t, []string{"region"}, byRegion.GroupBy)

	open := defs.Views[1]
	assert.Equal(t, "ops.tickets", open.Source.ID)
	assert.Len(t, open.Source.Fields, 7)
	assert.Len(t, open.VisibleColumns(), 2)
	assert.Equal(t, schema.FormatCurrency, open.Columns[1].Format.Type)
	assert.Equal(t, "sum", open.Columns[1].Aggregate)
	require.NotNil(t, open.Filters)
	assert.Equal(t, "status", filter.Conditions(open.Filters)[0].Field)
	assert.Equal(t, 50, open.Pagination.PageSize)

	assert.Empty(t, schema.Lint(defs.Sources, defs.Views))
}

func TestLoadAllErrors(t *testing.T) {
	t.Run("unknown view source", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "v.yaml", "views:\n  - {id: v, source: nope, columns: [{field: id}]}\n")
		_, err := LoadAll(dir)
		assert.ErrorContains(t, err, `unknown source "nope"`)
	})
	t.Run("duplicate source", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.dsl", "module m\nsource a: table\n  id: string\n")
		writeFile(t, dir, "b.dsl", "module m\nsource a: table\n  id: string\n")
		_, err := LoadAll(dir)
		assert.ErrorContains(t, err, `duplicate source "m.a"`)
	})
	t.Run("unknown yaml key", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "v.yaml", "sources:\n  - {id: a, colour: red}\n")
		_, err := LoadAll(dir)
		assert.Error(t, err)
	})
	t.Run("missing root", func(t *testing.T) {
		_, err := LoadAll(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})
}
