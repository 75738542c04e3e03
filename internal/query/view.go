package query

import (
	"dataview/internal/filter"
	"dataview/internal/schema"
)

const DefaultPageSize = 20

// Overrides: параметры вызывающей стороны поверх сохранённого представления.
type Overrides struct {
	Filters  *filter.Group           `json:"filters,omitempty"`
	Sorts    []schema.SortDefinition `json:"sorts,omitempty"`
	Page     int                     `json:"page,omitempty"`
	PageSize int                     `json:"pageSize,omitempty"`
}

// Compiler компилирует зарегистрированные представления в запросы.
type Compiler struct {
	Registry        *schema.Registry
	DefaultPageSize int
}

func NewCompiler(reg *schema.Registry) *Compiler {
	return &Compiler{Registry: reg, DefaultPageSize: DefaultPageSize}
}

// Builder открывает построитель над зарегистрированным источником.
func (c *Compiler) Builder(sourceID string) (*Builder, error) {
	src, ok := c.Registry.GetDataSource(sourceID)
	if !ok {
		return nil, &NotFoundError{Kind: "data source", ID: sourceID}
	}
	return NewBuilder(src), nil
}

// CompileView сливает сохранённые фильтры/сортировки/пагинацию представления
// с overrides. Фильтры объединяются через AND (фильтр представления только
// сужается), сортировки overrides заменяют сортировки представления.
// Само представление не изменяется.
func (c *Compiler) CompileView(viewID string, ov *Overrides) (CompiledQuery, error) {
	view, ok := c.Registry.GetDataView(viewID)
	if !ok {
		return CompiledQuery{}, &NotFoundError{Kind: "data view", ID: viewID}
	}
	if ov == nil {
		ov = &Overrides{}
	}

	cols := view.VisibleColumns()
	fields := make([]string, 0, len(cols))
	for _, col := range cols {
		fields = append(fields, col.Field)
	}
	b := NewBuilder(view.Source).Select(fields...)

	parts := []filter.Filter{view.Filters, ov.Filters}
	if sd := view.Source.SoftDelete; sd != nil && sd.Field != "" {
		parts = append(parts, filter.Where(sd.Field, filter.OpIsNull, nil))
	}
	if where := filter.Conjoin(parts...); where != nil {
		b.Where(where)
	}

	if len(ov.Sorts) > 0 {
		b.OrderBy(ov.Sorts...)
	} else if len(view.Sorts) > 0 {
		b.OrderBy(view.Sorts...)
	}

	if len(view.GroupBy) > 0 {
		b.GroupBy(view.GroupBy...)
	}

	if p := view.Pagination; p != nil && p.Enabled {
		page := ov.Page
		if page < 1 {
			page = 1
		}
		size := ov.PageSize
		if size <= 0 {
			size = p.PageSize
		}
		if size <= 0 {
			size = c.pageSize()
		}
		b.Limit(size).Offset((page - 1) * size)
	}

	return b.Build()
}

func (c *Compiler) pageSize() int {
	if c.DefaultPageSize > 0 {
		return c.DefaultPageSize
	}
	return DefaultPageSize
}
