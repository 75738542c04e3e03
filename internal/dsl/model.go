package dsl

import "dataview/internal/schema"

// Definitions: всё, что прочитано из каталога определений.
type Definitions struct {
	Sources []schema.DataSource
	Views   []schema.DataView
}

// yamlFile: формат *.yaml: источники и представления в одном документе.
type yamlFile struct {
	Sources []schema.DataSource `yaml:"sources"`
	Views   []yamlView          `yaml:"views"`
}

// yamlView ссылается на источник по id; источник подставляется при загрузке.
type yamlView struct {
	schema.DataView `yaml:",inline"`
	SourceID        string `yaml:"source"`
}

// pendingView: представление, ожидающее разрешения ссылки на источник.
type pendingView struct {
	view     schema.DataView
	sourceID string
	file     string
}
