package schema

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry: хранилище определений источников и представлений по id.
// Чтения параллельны, запись эксклюзивна (RWMutex).
type Registry struct {
	mu      sync.RWMutex
	sources map[string]DataSource
	views   map[string]DataView
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]DataSource),
		views:   make(map[string]DataView),
	}
}

// RegisterDataSource вставляет или заменяет источник (побеждает последняя запись).
func (r *Registry) RegisterDataSource(src DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[src.ID]; exists {
		slog.Warn("data source replaced", "id", src.ID)
	}
	r.sources[src.ID] = src
}

// RegisterDataView вставляет или заменяет представление (побеждает последняя запись).
func (r *Registry) RegisterDataView(view DataView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.views[view.ID]; exists {
		slog.Warn("data view replaced", "id", view.ID)
	}
	r.views[view.ID] = view
}

func (r *Registry) GetDataSource(id string) (DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[id]
	return src, ok
}

func (r *Registry) GetDataView(id string) (DataView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	return v, ok
}

// Replace атомарно подменяет всё содержимое реестра (перезагрузка определений).
func (r *Registry) Replace(sources []DataSource, views []DataView) {
	ns := make(map[string]DataSource, len(sources))
	for _, s := range sources {
		ns[s.ID] = s
	}
	nv := make(map[string]DataView, len(views))
	for _, v := range views {
		nv[v.ID] = v
	}

	r.mu.Lock()
	r.sources = ns
	r.views = nv
	r.mu.Unlock()
}

// DataSources: снимок источников, отсортированный по id.
func (r *Registry) DataSources() []DataSource {
	r.mu.RLock()
	out := make([]DataSource, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DataViews: снимок представлений, отсортированный по id.
func (r *Registry) DataViews() []DataView {
	r.mu.RLock()
	out := make([]DataView, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
