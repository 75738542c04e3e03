package pg

import (
	"testing"

	"dataview/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamsSource() schema.DataSource {
	return schema.DataSource{
		ID: "ops.teams", Kind: schema.KindTable, Entity: "ops.teams", PrimaryKey: "id",
		Fields: []schema.FieldDefinition{
			{Name: "id", Type: schema.TypeString},
			{Name: "name", Type: schema.TypeString, Required: true, Unique: true},
		},
	}
}

func ticketsSource() schema.DataSource {
	return schema.DataSource{
		ID: "ops.tickets", Kind: schema.KindTable, Entity: "ops.tickets", PrimaryKey: "id",
		Fields: []schema.FieldDefinition{
			{Name: "id", Type: schema.TypeString},
			{Name: "status", Type: schema.TypeString, Indexed: true, DefaultValue: "open"},
			{Name: "amount", Type: schema.TypeCurrency},
			{Name: "team_id", Type: schema.TypeRelation, Relation: &schema.Relation{Source: "ops.teams", OnDelete: "set_null"}},
		},
		Timestamps: &schema.Timestamps{CreatedAt: "created_at", UpdatedAt: "updated_at"},
		SoftDelete: &schema.SoftDelete{Field: "deleted_at"},
	}
}

func TestGenerateDDL(t *testing.T) {
	api := schema.DataSource{ID: "ext", Kind: schema.KindAPI}
	ddl, err := GenerateDDL([]schema.DataSource{ticketsSource(), teamsSource(), api})
	require.NoError(t, err)

	tables := ddl["100_schemas_and_tables"]
	assert.Equal(t, 1, countOf(tables, `create schema if not exists "ops";`))
	assert.Contains(t, tables, `create table if not exists "ops"."teams" (
  "id" text primary key,
  "name" text not null
);`)
	assert.Contains(t, tables, `create table if not exists "ops"."tickets" (
  "id" text primary key,
  "status" text default 'open',
  "amount" numeric(18,2),
  "team_id" text,
  "created_at" timestamp with time zone not null default now(),
  "updated_at" timestamp with time zone not null default now(),
  "deleted_at" timestamp with time zone null
);`)
	assert.Contains(t, tables, `create unique index if not exists "teams_name_uq" on "ops"."teams"("name");`)
	assert.Contains(t, tables, `create index if not exists "tickets_status_idx" on "ops"."tickets"("status");`)
	assert.NotContains(t, tables, `"ext"`)

	assert.Equal(t,
		`alter table "ops"."tickets" add constraint "tickets_team_id_fk" foreign key ("team_id") references "ops"."teams"("id") on delete SET NULL;`+"\n",
		ddl["200_foreign_keys"])
}

func TestGenerateDDLErrors(t *testing.T) {
	bad := ticketsSource()
	bad.Fields = append(bad.Fields, schema.FieldDefinition{Name: "x", Type: "blob"})
	_, err := GenerateDDL([]schema.DataSource{bad, teamsSource()})
	assert.ErrorContains(t, err, "unknown type")

	_, err = GenerateDDL([]schema.DataSource{ticketsSource()})
	assert.ErrorContains(t, err, "unknown source")

	inj := teamsSource()
	inj.Entity = `teams"; drop table x; --`
	_, err = GenerateDDL([]schema.DataSource{inj})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestLiteralEscapesQuotes(t *testing.T) {
	lit, err := literal("o'brien")
	require.NoError(t, err)
	assert.Equal(t, `'o''brien'`, lit)

	_, err = literal("a\nb")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("create schema if not exists \"a\";\ncreate table t (\n  x text\n);\n")
	assert.Equal(t, []string{`create schema if not exists "a"`, "create table t (\n  x text\n)"}, got)
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
