package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"dataview/internal/filter"
	"dataview/internal/query"
)

// Placeholder: стиль позиционных параметров драйвера.
type Placeholder int

const (
	Question Placeholder = iota // ?  (duckdb, sqlite, mysql)
	Dollar                      // $1 (postgres)
)

// Executor выполняет CompiledQuery через database/sql.
// Соединением и транзакциями владеет вызывающая сторона.
type Executor struct {
	db          *sql.DB
	placeholder Placeholder
}

func New(db *sql.DB, ph Placeholder) *Executor {
	return &Executor{db: db, placeholder: ph}
}

func (e *Executor) Execute(ctx context.Context, q query.CompiledQuery) (*query.Result, error) {
	rows, err := e.db.QueryContext(ctx, Rebind(e.placeholder, q.SQL), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	data, err := ScanRecords(rows)
	if err != nil {
		return nil, err
	}

	total := len(data)
	// постраничная выборка: общее число строк отдельным запросом
	if q.Residual == nil && q.Limit != nil && q.CountSQL != "" {
		var n int64
		if err := e.db.QueryRowContext(ctx, Rebind(e.placeholder, q.CountSQL), q.Params...).Scan(&n); err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		total = int(n)
	}
	return &query.Result{Data: data, Total: total}, nil
}

// Rebind переписывает "?" в "$n". В скомпилированном SQL нет строковых
// литералов, все значения приходят параметрами.
func Rebind(ph Placeholder, sqlText string) string {
	if ph != Dollar || !strings.Contains(sqlText, "?") {
		return sqlText
	}
	var sb strings.Builder
	sb.Grow(len(sqlText) + 8)
	n := 0
	for i := 0; i < len(sqlText); i++ {
		if sqlText[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(sqlText[i])
	}
	return sb.String()
}

// ScanRecords читает все строки в map[column]value и закрывает rows.
func ScanRecords(rows *sql.Rows) ([]filter.Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	out := []filter.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec := make(filter.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type floater interface{ Float64() float64 }

// normalize приводит значения драйвера к тем, что понимает вычислитель.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case floater:
		// duckdb.Decimal и подобные
		return x.Float64()
	}
	return v
}
