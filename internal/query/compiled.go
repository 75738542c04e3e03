package query

import (
	"dataview/internal/filter"
	"dataview/internal/schema"
)

type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

func (t JoinType) valid() bool {
	switch t {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return true
	}
	return false
}

type JoinDefinition struct {
	Type       JoinType `json:"type" yaml:"type"`
	Source     string   `json:"source" yaml:"source"`
	LeftField  string   `json:"leftField" yaml:"leftField"`
	RightField string   `json:"rightField" yaml:"rightField"`
}

// CompiledQuery: переносимый результат компиляции: структурные части
// запроса + SQL с позиционными параметрами. После Build не изменяется.
// len(Params) равно числу "?" в SQL, порядок совпадает слева направо.
type CompiledQuery struct {
	Source   schema.DataSource       `json:"source"`
	Fields   []string                `json:"fields"`
	Filters  *filter.Group           `json:"filters,omitempty"`
	Sorts    []schema.SortDefinition `json:"sorts,omitempty"`
	Groups   []string                `json:"groups,omitempty"`
	Having   *filter.Group           `json:"having,omitempty"`
	Limit    *int                    `json:"limit,omitempty"`
	Offset   *int                    `json:"offset,omitempty"`
	Joins    []JoinDefinition        `json:"joins,omitempty"`
	SQL      string                  `json:"sql"`
	Params   []any                   `json:"params"`
	CountSQL string                  `json:"countSql"`
	// Residual: часть фильтра без SQL-представления (notContains, regex);
	// применяется к строкам после выборки.
	Residual *filter.Group `json:"residual,omitempty"`
}

type Metadata struct {
	QueryID         string  `json:"queryId"`
	ExecutionTimeMs float64 `json:"executionTime"`
	Cached          bool    `json:"cached"`
	Source          string  `json:"source"`
}

// Result: ответ исполнителя; Metadata заполняет движок.
type Result struct {
	Data       []filter.Record `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page,omitempty"`
	PageSize   int             `json:"pageSize,omitempty"`
	TotalPages int             `json:"totalPages,omitempty"`
	Aggregates map[string]any  `json:"aggregates,omitempty"`
	Metadata   Metadata        `json:"metadata"`
}
