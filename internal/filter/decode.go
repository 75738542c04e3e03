package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Форма узла определяется один раз: на границе декодирования:
// объект с ключом "logic": группа, иначе: лист. Дальше работаем только
// через type switch по Filter.

// Decode разбирает JSON-узел (лист или группу).
func Decode(data []byte) (Filter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return FromValue(raw)
}

// FromValue строит узел из уже декодированного значения (map из JSON или YAML).
func FromValue(raw any) (Filter, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := asStringMap(raw)
	if !ok {
		return nil, fmt.Errorf("filter: expected object, got %T", raw)
	}

	if lg, isGroup := m["logic"]; isGroup {
		logic, _ := lg.(string)
		switch Logic(logic) {
		case LogicAnd, LogicOr:
		default:
			return nil, fmt.Errorf("filter: unknown logic %q (allowed: and|or)", logic)
		}
		g := &Group{Logic: Logic(logic), Filters: []Filter{}}
		children, _ := m["filters"].([]any)
		if m["filters"] != nil && children == nil {
			return nil, fmt.Errorf("filter: group filters must be a list")
		}
		for i, ch := range children {
			node, err := FromValue(ch)
			if err != nil {
				return nil, fmt.Errorf("filters[%d]: %w", i, err)
			}
			if node != nil {
				g.Filters = append(g.Filters, node)
			}
		}
		return g, nil
	}

	field, _ := m["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("filter: condition without field")
	}
	op, _ := m["operator"].(string)
	if op == "" {
		return nil, fmt.Errorf("filter: condition %q without operator", field)
	}
	return &Condition{Field: field, Operator: Operator(op), Value: m["value"]}, nil
}

// yaml.v3 отдаёт map[string]interface{}, но вложенные карты с нестроковыми
// ключами приходят как map[interface{}]interface{}: поддерживаем оба варианта.
func asStringMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// UnmarshalJSON принимает как группу, так и голый лист (нормализуется в and-группу).
func (g *Group) UnmarshalJSON(data []byte) error {
	node, err := Decode(data)
	if err != nil {
		return err
	}
	return g.assign(node)
}

func (g *Group) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	node, err := FromValue(raw)
	if err != nil {
		return err
	}
	return g.assign(node)
}

func (g *Group) assign(node Filter) error {
	norm := Normalize(node)
	if norm == nil {
		*g = Group{Logic: LogicAnd, Filters: []Filter{}}
		return nil
	}
	*g = *norm
	return nil
}
