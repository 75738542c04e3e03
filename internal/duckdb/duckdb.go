package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dataview/internal/filter"
	"dataview/internal/schema"
	"dataview/internal/sqlexec"

	_ "github.com/duckdb/duckdb-go/v2" // driver: duckdb
)

// Open открывает встроенную duckdb. Пустой dsn: база в памяти.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewExecutor(db *sql.DB) *sqlexec.Executor {
	return sqlexec.New(db, sqlexec.Question)
}

func columnType(t schema.FieldType) string {
	switch t {
	case schema.TypeNumber, schema.TypeCurrency, schema.TypePercentage:
		return "DOUBLE"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeDate:
		return "DATE"
	case schema.TypeDatetime:
		return "TIMESTAMP"
	case schema.TypeTime:
		return "TIME"
	case schema.TypeJSON, schema.TypeArray:
		return "JSON"
	default:
		return "VARCHAR"
	}
}

// CreateTable создаёт таблицу источника (entity или id) по его полям.
func CreateTable(ctx context.Context, db *sql.DB, src schema.DataSource) error {
	if !schema.ValidIdentifier(src.Table()) {
		return fmt.Errorf("create %s: invalid table name", src.Table())
	}
	cols := make([]string, 0, len(src.Fields)+3)
	for _, f := range src.Fields {
		if !schema.ValidIdentifier(f.Name) {
			return fmt.Errorf("create %s: invalid field %q", src.Table(), f.Name)
		}
		cols = append(cols, f.Name+" "+columnType(f.Type))
	}
	if ts := src.Timestamps; ts != nil {
		cols = append(cols, ts.CreatedAt+" TIMESTAMP", ts.UpdatedAt+" TIMESTAMP")
	}
	if sd := src.SoftDelete; sd != nil && sd.Field != "" {
		cols = append(cols, sd.Field+" TIMESTAMP")
	}
	if i := strings.LastIndexByte(src.Table(), '.'); i > 0 {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+src.Table()[:i]); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	stmt := "CREATE TABLE IF NOT EXISTS " + src.Table() + " (" + strings.Join(cols, ", ") + ")"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", src.Table(), err)
	}
	return nil
}

// Load вставляет записи в таблицу источника. Отсутствующие поля: NULL.
func Load(ctx context.Context, db *sql.DB, src schema.DataSource, records []filter.Record) error {
	if len(records) == 0 {
		return nil
	}
	names := make([]string, 0, len(src.Fields))
	marks := make([]string, 0, len(src.Fields))
	for _, f := range src.Fields {
		names = append(names, f.Name)
		marks = append(marks, "?")
	}
	stmt := "INSERT INTO " + src.Table() + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	ins, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", src.Table(), err)
	}
	defer ins.Close()

	for i, r := range records {
		args := make([]any, len(names))
		for j, n := range names {
			args[j] = r[n]
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", src.Table(), i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("duckdb table loaded", "table", src.Table(), "rows", len(records))
	return nil
}
