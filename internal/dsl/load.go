package dsl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dataview/internal/schema"

	"gopkg.in/yaml.v3"
)

// LoadYAML читает *.yaml с секциями sources и views.
func LoadYAML(path string) ([]schema.DataSource, []pendingView, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("yaml: %w", err)
	}
	views := make([]pendingView, 0, len(doc.Views))
	for _, v := range doc.Views {
		views = append(views, pendingView{view: v.DataView, sourceID: v.SourceID, file: path})
	}
	return doc.Sources, views, nil
}

// LoadAll обходит root: *.dsl и *.yaml/*.yml. Ссылки представлений на
// источники разрешаются после чтения всех файлов; повторный id: ошибка.
func LoadAll(root string) (Definitions, error) {
	var (
		sources []schema.DataSource
		pending []pendingView
		origin  = map[string]string{}
	)

	addSources := func(path string, srcs []schema.DataSource) error {
		for _, s := range srcs {
			if s.ID == "" {
				return fmt.Errorf("source without id in %s", path)
			}
			if prev, dup := origin[s.ID]; dup {
				return fmt.Errorf("duplicate source %q (%s and %s)", s.ID, prev, path)
			}
			origin[s.ID] = path
			sources = append(sources, s)
		}
		return nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".dsl":
			srcs, err := LoadSources(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			return addSources(path, srcs)
		case ".yaml", ".yml":
			srcs, views, err := LoadYAML(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			pending = append(pending, views...)
			return addSources(path, srcs)
		}
		return nil
	})
	if err != nil {
		return Definitions{}, err
	}

	byID := make(map[string]schema.DataSource, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}
	views := make([]schema.DataView, 0, len(pending))
	seenViews := map[string]string{}
	for _, p := range pending {
		if p.view.ID == "" {
			return Definitions{}, fmt.Errorf("view without id in %s", p.file)
		}
		if prev, dup := seenViews[p.view.ID]; dup {
			return Definitions{}, fmt.Errorf("duplicate view %q (%s and %s)", p.view.ID, prev, p.file)
		}
		seenViews[p.view.ID] = p.file
		src, ok := byID[p.sourceID]
		if !ok {
			return Definitions{}, fmt.Errorf("view %q in %s: unknown source %q", p.view.ID, p.file, p.sourceID)
		}
		v := p.view
		v.Source = src
		views = append(views, v)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return Definitions{Sources: sources, Views: views}, nil
}
