package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dataview/internal/sqlexec"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
)

// Pool: настройки пула database/sql; нули заменяются значениями по умолчанию.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	PingTimeout time.Duration
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = 5
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = 30 * time.Minute
	}
	if p.PingTimeout <= 0 {
		p.PingTimeout = 5 * time.Second
	}
	return p
}

func Open(url string) (*sql.DB, error) {
	return OpenPool(url, Pool{})
}

// OpenPool открывает соединение через pgx и проверяет его ping-ом.
func OpenPool(url string, p Pool) (*sql.DB, error) {
	p = p.withDefaults()
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)

	ctx, cancel := context.WithTimeout(context.Background(), p.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("postgres connected", "maxOpen", p.MaxOpen, "maxIdle", p.MaxIdle)
	return db, nil
}

// NewExecutor: исполнитель скомпилированных запросов поверх pgx ($n-параметры).
func NewExecutor(db *sql.DB) *sqlexec.Executor {
	return sqlexec.New(db, sqlexec.Dollar)
}
