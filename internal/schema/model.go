package schema

import (
	"strings"

	"dataview/internal/filter"
)

type SourceKind string

const (
	KindTable SourceKind = "table"
	KindView  SourceKind = "view"
	KindQuery SourceKind = "query"
	KindAPI   SourceKind = "api"
	KindFile  SourceKind = "file"
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindTable, KindView, KindQuery, KindAPI, KindFile:
		return true
	}
	return false
}

// FieldType: закрытый список типов полей источника.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeBoolean    FieldType = "boolean"
	TypeDate       FieldType = "date"
	TypeDatetime   FieldType = "datetime"
	TypeTime       FieldType = "time"
	TypeEmail      FieldType = "email"
	TypeURL        FieldType = "url"
	TypePhone      FieldType = "phone"
	TypeCurrency   FieldType = "currency"
	TypePercentage FieldType = "percentage"
	TypeJSON       FieldType = "json"
	TypeArray      FieldType = "array"
	TypeRelation   FieldType = "relation"
	TypeFile       FieldType = "file"
	TypeImage      FieldType = "image"
)

var fieldTypes = map[FieldType]struct{}{
	TypeString: {}, TypeNumber: {}, TypeBoolean: {}, TypeDate: {}, TypeDatetime: {},
	TypeTime: {}, TypeEmail: {}, TypeURL: {}, TypePhone: {}, TypeCurrency: {},
	TypePercentage: {}, TypeJSON: {}, TypeArray: {}, TypeRelation: {}, TypeFile: {},
	TypeImage: {},
}

func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

type Validation struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum      []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	ElemType  string   `json:"elemType,omitempty" yaml:"elemType,omitempty"` // для array
}

type Relation struct {
	Source   string `json:"source" yaml:"source"`                         // id целевого источника
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`       // поле цели (по умолчанию её PK)
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`         // belongsTo | hasMany
	OnDelete string `json:"onDelete,omitempty" yaml:"onDelete,omitempty"` // restrict | set_null | cascade
}

type FieldDefinition struct {
	Name         string      `json:"name" yaml:"name"`
	Type         FieldType   `json:"type" yaml:"type"`
	Label        string      `json:"label,omitempty" yaml:"label,omitempty"`
	Required     bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Unique       bool        `json:"unique,omitempty" yaml:"unique,omitempty"`
	Indexed      bool        `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	DefaultValue any         `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Validation   *Validation `json:"validation,omitempty" yaml:"validation,omitempty"`
	Format       string      `json:"format,omitempty" yaml:"format,omitempty"`
	Relation     *Relation   `json:"relation,omitempty" yaml:"relation,omitempty"`
}

type Timestamps struct {
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt string `json:"updatedAt" yaml:"updatedAt"`
}

type SoftDelete struct {
	Field string `json:"field" yaml:"field"`
}

// DataSource: схема таблицы/представления/API, к которому строятся запросы.
type DataSource struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Kind       SourceKind        `json:"kind" yaml:"kind"`
	Entity     string            `json:"entity,omitempty" yaml:"entity,omitempty"`
	Fields     []FieldDefinition `json:"fields" yaml:"fields"`
	PrimaryKey string            `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Timestamps *Timestamps       `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	SoftDelete *SoftDelete       `json:"softDelete,omitempty" yaml:"softDelete,omitempty"`
}

// Table: имя для FROM: entity, если задан, иначе id.
func (s DataSource) Table() string {
	if s.Entity != "" {
		return s.Entity
	}
	return s.ID
}

// Field ищет поле по имени.
func (s DataSource) Field(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// HasField учитывает и системные колонки (timestamps, soft delete).
func (s DataSource) HasField(name string) bool {
	if _, ok := s.Field(name); ok {
		return true
	}
	if s.Timestamps != nil && (name == s.Timestamps.CreatedAt || name == s.Timestamps.UpdatedAt) {
		return true
	}
	if s.SoftDelete != nil && name == s.SoftDelete.Field {
		return true
	}
	return false
}

// HasPath: поле или вложенный путь внутри объявленного поля (owner.name).
func (s DataSource) HasPath(path string) bool {
	if s.HasField(path) {
		return true
	}
	if i := strings.IndexByte(path, '.'); i > 0 {
		return s.HasField(path[:i])
	}
	return false
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type SortDefinition struct {
	Field      string    `json:"field" yaml:"field"`
	Direction  Direction `json:"direction" yaml:"direction"`
	NullsFirst bool      `json:"nullsFirst,omitempty" yaml:"nullsFirst,omitempty"`
}

type FormatType string

const (
	FormatCurrency   FormatType = "currency"
	FormatNumber     FormatType = "number"
	FormatPercentage FormatType = "percentage"
	FormatDate       FormatType = "date"
	FormatDatetime   FormatType = "datetime"
	FormatBoolean    FormatType = "boolean"
	FormatEnum       FormatType = "enum"
)

func (f FormatType) Valid() bool {
	switch f {
	case FormatCurrency, FormatNumber, FormatPercentage, FormatDate, FormatDatetime, FormatBoolean, FormatEnum:
		return true
	}
	return false
}

type ColumnFormat struct {
	Type     FormatType `json:"type" yaml:"type"`
	Currency string     `json:"currency,omitempty" yaml:"currency,omitempty"` // ISO 4217, по умолчанию USD
	Decimals *int       `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Catalog  string     `json:"catalog,omitempty" yaml:"catalog,omitempty"` // для enum
}

type ColumnDefinition struct {
	Field      string        `json:"field" yaml:"field"`
	Label      string        `json:"label,omitempty" yaml:"label,omitempty"`
	Visible    *bool         `json:"visible,omitempty" yaml:"visible,omitempty"`
	Sortable   bool          `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	Filterable bool          `json:"filterable,omitempty" yaml:"filterable,omitempty"`
	Format     *ColumnFormat `json:"format,omitempty" yaml:"format,omitempty"`
	Aggregate  string        `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
}

// IsVisible: колонка видима, пока явно не указано visible: false.
func (c ColumnDefinition) IsVisible() bool { return c.Visible == nil || *c.Visible }

type Pagination struct {
	Enabled         bool  `json:"enabled" yaml:"enabled"`
	PageSize        int   `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
	PageSizeOptions []int `json:"pageSizeOptions,omitempty" yaml:"pageSizeOptions,omitempty"`
}

// Permissions хранятся вместе с представлением; проверяет их вызывающая сторона.
type Permissions struct {
	Read  []string `json:"read,omitempty" yaml:"read,omitempty"`
	Write []string `json:"write,omitempty" yaml:"write,omitempty"`
}

// DataView: сохранённая конфигурация запроса над источником.
type DataView struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Source      DataSource         `json:"source" yaml:"-"`
	Columns     []ColumnDefinition `json:"columns" yaml:"columns"`
	Filters     *filter.Group      `json:"filters,omitempty" yaml:"filters,omitempty"`
	Sorts       []SortDefinition   `json:"sorts,omitempty" yaml:"sorts,omitempty"`
	GroupBy     []string           `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Pagination  *Pagination        `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Permissions *Permissions       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// VisibleColumns: колонки без visible: false, в исходном порядке.
func (v DataView) VisibleColumns() []ColumnDefinition {
	out := make([]ColumnDefinition, 0, len(v.Columns))
	for _, c := range v.Columns {
		if c.IsVisible() {
			out = append(out, c)
		}
	}
	return out
}
