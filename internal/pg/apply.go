package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// коды SQLSTATE, при которых объект уже создан
const (
	codeDuplicateObject = "42710"
	codeDuplicateTable  = "42P07"
)

// ApplyDDL выполняет map[key]sql в порядке ключей. Ожидается idempotent DDL
// (create ... if not exists); повторное добавление FK пропускается.
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string) error {
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		for _, stmt := range splitStatements(ddl[k]) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && (pgErr.Code == codeDuplicateObject || pgErr.Code == codeDuplicateTable) {
					slog.Info("DDL skipped, already exists", "key", k, "constraint", pgErr.ConstraintName, "msg", pgErr.Message)
					continue
				}
				return fmt.Errorf("DDL apply %s: %w", k, err)
			}
		}
		slog.Debug("DDL applied", "key", k)
	}
	return nil
}

// splitStatements режет блок по ";\n". Литералов с ";" генератор не порождает.
func splitStatements(block string) []string {
	var out []string
	for _, s := range strings.Split(block, ";\n") {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
