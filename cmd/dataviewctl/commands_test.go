package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctlDSL = `
module ops

source tickets: table pk=id soft_delete
  id: string required
  status: enum[open, pending, closed]
  amount: money min=0
`

const ctlViews = `
views:
  - id: open-tickets
    name: Open tickets
    source: ops.tickets
    columns:
      - {field: id, label: ID}
      - {field: status, format: {type: enum, catalog: status}}
      - {field: amount}
    filters: {field: status, operator: eq, value: open}
    sorts: [{field: amount, direction: desc}]
    pagination: {enabled: true, pageSize: 2}
`

const ctlRecords = `[
  {"id": "t1", "status": "open", "amount": 10},
  {"id": "t2", "status": "open", "amount": 30},
  {"id": "t3", "status": "closed", "amount": 5},
  {"id": "t4", "status": "open", "amount": 20}
]`

type fixture struct {
	defs, enums, records string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		defs:    filepath.Join(root, "defs"),
		enums:   filepath.Join(root, "enums"),
		records: filepath.Join(root, "tickets.json"),
	}
	write := func(path, body string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write(filepath.Join(f.defs, "ops.dsl"), ctlDSL)
	write(filepath.Join(f.defs, "views.yaml"), ctlViews)
	write(filepath.Join(f.enums, "status.yaml"), "items:\n  - {code: open, name: Open}\n  - {code: closed, name: Closed}\n")
	write(f.records, ctlRecords)
	return f
}

func (f fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--defs", f.defs, "--enums", f.enums}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestLintCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := f.run(t, "lint")
	require.NoError(t, err)
	assert.Equal(t, "ok: 1 sources, 1 views\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(f.defs, "bad.yaml"),
		[]byte("views:\n  - {id: bad, source: ops.tickets, columns: [{field: nope}]}\n"), 0o644))
	out, _, err = f.run(t, "lint")
	assert.EqualError(t, err, "1 issue(s) found")
	assert.Contains(t, out, "bad.nope")
	assert.Contains(t, out, "column_unknown")
}

func TestCompileCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := f.run(t, "compile", "open-tickets",
		"--page", "2", "--where", "amount__gte=5", "--placeholder", "dollar")
	require.NoError(t, err)

	var got struct {
		SQL    string `json:"sql"`
		Params []any  `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t,
		"SELECT id, status, amount FROM ops.tickets"+
			" WHERE ((status = $1) AND (amount >= $2) AND (deleted_at IS NULL))"+
			" ORDER BY amount DESC NULLS LAST LIMIT 2 OFFSET 2",
		got.SQL)
	assert.Equal(t, []any{"open", 5.0}, got.Params)

	_, _, err = f.run(t, "compile", "missing")
	assert.EqualError(t, err, `data view "missing" not found`)

	_, _, err = f.run(t, "compile", "open-tickets", "--placeholder", "colon")
	assert.Error(t, err)
}

func TestEvalCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := f.run(t, "eval", "open-tickets", "--records", f.records)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"ID", "status", "amount"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"t2", "Open", "30"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"t4", "Open", "20"}, strings.Fields(lines[2]))
	assert.Equal(t, "page 1/2, total 3", lines[3])

	out, _, err = f.run(t, "eval", "open-tickets", "--records", f.records, "--page", "2", "--json")
	require.NoError(t, err)
	var res struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "t1", res.Data[0]["id"])
}

func TestEvalCommandRejectsInvalidRecords(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"id": "x", "status": "lost"}]`), 0o644))

	_, errOut, err := f.run(t, "eval", "open-tickets", "--records", bad)
	assert.ErrorContains(t, err, "1 invalid value(s)")
	assert.Contains(t, errOut, "row 0:")
	assert.Contains(t, errOut, "enum_invalid")
}

func TestDDLCommand(t *testing.T) {
	f := newFixture(t)
	out, _, err := f.run(t, "ddl")
	require.NoError(t, err)
	assert.Contains(t, out, "-- 100_schemas_and_tables")
	assert.Contains(t, out, `create table if not exists "ops"."tickets"`)
}
