package api

import (
	"sync"
	"time"

	"dataview/internal/query"
	"dataview/internal/records"
	"dataview/internal/reference"
	"dataview/internal/schema"

	"golang.org/x/text/language"
)

// Server: состояние HTTP-слоя: реестр определений, компилятор, исполнитель
// (может отсутствовать) и справочники для форматирования.
type Server struct {
	Registry *schema.Registry
	Compiler *query.Compiler
	Executor query.Executor

	DefsDir  string
	EnumsDir string

	mu       sync.RWMutex
	catalogs reference.Catalogs
	lang     language.Tag
	loc      *time.Location
}

type Options struct {
	Executor        query.Executor
	Catalogs        reference.Catalogs
	Lang            language.Tag
	Location        *time.Location
	DefsDir         string
	EnumsDir        string
	DefaultPageSize int
}

func NewServer(reg *schema.Registry, opts Options) *Server {
	comp := query.NewCompiler(reg)
	if opts.DefaultPageSize > 0 {
		comp.DefaultPageSize = opts.DefaultPageSize
	}
	if opts.Catalogs == nil {
		opts.Catalogs = reference.Catalogs{}
	}
	return &Server{
		Registry: reg,
		Compiler: comp,
		Executor: opts.Executor,
		DefsDir:  opts.DefsDir,
		EnumsDir: opts.EnumsDir,
		catalogs: opts.Catalogs,
		lang:     opts.Lang,
		loc:      opts.Location,
	}
}

// Formatter снимает текущие справочники под read-lock.
func (s *Server) Formatter() records.Formatter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records.Formatter{Lang: s.lang, Location: s.loc, Catalogs: s.catalogs}
}

func (s *Server) catalog(name string) (reference.EnumDirectory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.catalogs[name]
	return d, ok
}

func (s *Server) setCatalogs(c reference.Catalogs) {
	s.mu.Lock()
	s.catalogs = c
	s.mu.Unlock()
}
