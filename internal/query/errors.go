package query

import (
	"fmt"

	"dataview/internal/filter"
)

// NotFoundError: обращение к незарегистрированному источнику/представлению.
type NotFoundError struct {
	Kind string // "data source" | "data view"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UnsupportedOperatorError: оператор не может быть скомпилирован в SQL
// в данной позиции (неизвестный оператор, notContains/regex в HAVING и т.п.).
type UnsupportedOperatorError struct {
	Field    string
	Operator filter.Operator
	Reason   string
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported operator %q on %q: %s", e.Operator, e.Field, e.Reason)
	}
	return fmt.Sprintf("unsupported operator %q on %q", e.Operator, e.Field)
}

// InvalidIdentifierError: имя не из разрешённого набора и не может
// подставляться в SQL.
type InvalidIdentifierError struct {
	Identifier string
	Reason     string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q: %s", e.Identifier, e.Reason)
}

// InvalidQueryError: прочие ошибки сборки (отрицательный limit и т.п.).
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string { return "invalid query: " + e.Reason }
