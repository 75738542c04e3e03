package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dataview/internal/api"
	"dataview/internal/config"
	"dataview/internal/duckdb"
	"dataview/internal/logger"
	"dataview/internal/pg"
	"dataview/internal/query"
	"dataview/internal/schema"

	"golang.org/x/text/language"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.json", os.Args[1:])
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	lang, err := language.Parse(cfg.Locale)
	if err != nil {
		return fmt.Errorf("locale %q: %w", cfg.Locale, err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	// 1. реестр и сервер; определения загружаются через Reload с линтером
	reg := schema.NewRegistry()
	srv := api.NewServer(reg, api.Options{
		Lang:            lang,
		Location:        loc,
		DefsDir:         cfg.DefsDir,
		EnumsDir:        cfg.EnumsDir,
		DefaultPageSize: cfg.DefaultPageSize,
	})
	sum, err := srv.Reload(cfg.DefsDir, cfg.EnumsDir)
	if err != nil {
		var le *api.LintError
		if errors.As(err, &le) {
			for _, it := range le.Issues {
				slog.Error("definition issue", "issue", it.String())
			}
		}
		return err
	}
	slog.Info("definitions loaded", "sources", sum.Sources, "views", sum.Views, "catalogs", sum.Catalogs)

	// 2. исполнитель (опционально)
	ctx := context.Background()
	exec, db, err := openExecutor(ctx, cfg, reg.DataSources())
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	srv.Executor = exec

	// 3. REST API
	addr := ":" + cfg.Port
	slog.Info("starting dataview server", "addr", addr, "driver", cfg.Driver)
	return api.RunServer(addr, srv)
}

func openExecutor(ctx context.Context, cfg config.Config, sources []schema.DataSource) (query.Executor, *sql.DB, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := pg.Open(cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			ddl, err := pg.GenerateDDL(sources)
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			if err := pg.ApplyDDL(ctx, db, ddl); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return pg.NewExecutor(db), db, nil

	case "duckdb":
		db, err := duckdb.Open(cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			for _, src := range sources {
				if src.Kind != schema.KindTable {
					continue
				}
				if err := duckdb.CreateTable(ctx, db, src); err != nil {
					db.Close()
					return nil, nil, err
				}
			}
		}
		return duckdb.NewExecutor(db), db, nil
	}
	slog.Warn("no database driver configured, only in-memory queries are available")
	return nil, nil, nil
}
