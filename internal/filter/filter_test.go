package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestResolveDotPath(t *testing.T) {
	rec := Record{
		"status": "open",
		"owner":  map[string]any{"name": "alice", "team": map[string]any{"code": "ops"}},
		"parent": nil,
	}

	v, ok := Resolve(rec, "owner.team.code")
	require.True(t, ok)
	assert.Equal(t, "ops", v)

	_, ok = Resolve(rec, "parent.id")
	assert.False(t, ok, "nil intermediate short-circuits")

	_, ok = Resolve(rec, "owner.missing.code")
	assert.False(t, ok)

	v, ok = Resolve(rec, "parent")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestEvaluateConditionOperators(t *testing.T) {
	rec := Record{
		"status": "Open",
		"amount": 150,
		"score":  float64(7.5),
		"tags":   []any{"a", "b"},
		"note":   nil,
		"when":   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"nested": map[string]any{"level": 3},
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"eq string", Where("status", OpEq, "Open"), true},
		{"eq is case sensitive", Where("status", OpEq, "open"), false},
		{"eq int vs float", Where("amount", OpEq, float64(150)), true},
		{"ne", Where("status", OpNe, "Closed"), true},
		{"gt", Where("amount", OpGt, 100), true},
		{"gte equal", Where("amount", OpGte, 150), true},
		{"lt", Where("score", OpLt, 7.5), false},
		{"lte", Where("score", OpLte, 7.5), true},
		{"gt numeric string operand", Where("amount", OpGt, "99"), true},
		{"gt non numeric fails closed", Where("status", OpGt, 1), false},
		{"gt null fails closed", Where("note", OpGt, 0), false},
		{"contains case-insensitive", Where("status", OpContains, "PE"), true},
		{"notContains", Where("status", OpNotContains, "clo"), true},
		{"startsWith", Where("status", OpStartsWith, "op"), true},
		{"endsWith", Where("status", OpEndsWith, "EN"), true},
		{"in", Where("status", OpIn, []any{"Closed", "Open"}), true},
		{"in typed slice", Where("amount", OpIn, []int{1, 150}), true},
		{"in non slice", Where("status", OpIn, "Open"), false},
		{"notIn", Where("status", OpNotIn, []string{"Closed"}), true},
		{"notIn non slice", Where("status", OpNotIn, "Closed"), false},
		{"isNull explicit nil", Where("note", OpIsNull, nil), true},
		{"isNull missing field", Where("absent", OpIsNull, nil), true},
		{"isNotNull", Where("status", OpIsNotNull, nil), true},
		{"between inclusive low", Where("amount", OpBetween, []any{150, 200}), true},
		{"between inclusive high", Where("amount", OpBetween, []any{100, 150}), true},
		{"between outside", Where("amount", OpBetween, []any{151, 200}), false},
		{"between malformed", Where("amount", OpBetween, []any{1}), false},
		{"between times", Where("when", OpBetween, []any{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		}), true},
		{"regex", Where("status", OpRegex, "^O.e"), true},
		{"regex invalid pattern", Where("status", OpRegex, "("), false},
		{"nested path", Where("nested.level", OpGte, 3), true},
		{"unknown operator", Where("status", Operator("like"), "Open"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(rec, tt.cond))
		})
	}
}

func TestEvaluateGroupVacuousTruth(t *testing.T) {
	rec := Record{"a": 1}
	assert.True(t, EvaluateGroup(rec, And()))
	assert.False(t, EvaluateGroup(rec, Or()))

	tree := Or(
		And(Where("a", OpEq, 2), Where("a", OpGt, 0)),
		And(Where("a", OpLt, 5)),
	)
	assert.True(t, Evaluate(rec, tree))
	assert.False(t, Evaluate(rec, And(tree, Where("a", OpIsNull, nil))))
}

func TestApplyDoesNotMutate(t *testing.T) {
	in := []Record{{"v": 1}, {"v": 2}, {"v": 3}}
	out := Apply(in, Where("v", OpGte, 2))
	assert.Len(t, out, 2)
	assert.Len(t, in, 3)
	assert.Equal(t, 1, in[0]["v"])
}

func TestNormalizeAndConjoin(t *testing.T) {
	leaf := Where("status", OpEq, "open")
	g := Normalize(leaf)
	require.NotNil(t, g)
	assert.Equal(t, LogicAnd, g.Logic)
	assert.Len(t, g.Filters, 1)

	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Conjoin(nil, nil))

	both := Conjoin(leaf, Where("owner", OpEq, "alice"))
	require.Len(t, both.Filters, 2)
	assert.Equal(t, "((status eq open) AND (owner eq alice))", both.String())
}

func TestDecodeJSON(t *testing.T) {
	node, err := Decode([]byte(`{
		"logic": "or",
		"filters": [
			{"field": "status", "operator": "eq", "value": "open"},
			{"logic": "and", "filters": [
				{"field": "amount", "operator": "between", "value": [1, 10]},
				{"field": "note", "operator": "isNull"}
			]}
		]
	}`))
	require.NoError(t, err)
	g, ok := node.(*Group)
	require.True(t, ok)
	assert.Equal(t, LogicOr, g.Logic)
	require.Len(t, g.Filters, 2)
	inner, ok := g.Filters[1].(*Group)
	require.True(t, ok)
	assert.Len(t, Conditions(inner), 2)

	_, err = Decode([]byte(`{"logic": "xor", "filters": []}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"operator": "eq"}`))
	assert.Error(t, err)
}

func TestGroupUnmarshalLeafNormalizes(t *testing.T) {
	var g Group
	require.NoError(t, g.UnmarshalJSON([]byte(`{"field":"a","operator":"eq","value":1}`)))
	assert.Equal(t, LogicAnd, g.Logic)
	assert.Len(t, g.Filters, 1)
}

func TestGroupUnmarshalYAML(t *testing.T) {
	src := `
logic: and
filters:
  - field: status
    operator: in
    value: [open, pending]
  - logic: or
    filters:
      - {field: amount, operator: gt, value: 10}
`
	var g Group
	require.NoError(t, yaml.Unmarshal([]byte(src), &g))
	require.Len(t, g.Filters, 2)
	c := g.Filters[0].(*Condition)
	assert.Equal(t, OpIn, c.Operator)
	assert.True(t, EvaluateGroup(Record{"status": "open", "amount": 11}, &g))
}
