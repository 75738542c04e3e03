package query

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"dataview/internal/filter"

	"github.com/oklog/ulid/v2"
)

// Executor: внешний исполнитель: превращает CompiledQuery в обращение к
// хранилищу. Повторы, таймауты и отмена: его ответственность.
type Executor interface {
	Execute(ctx context.Context, q CompiledQuery) (*Result, error)
}

// ExecutorFunc позволяет использовать функцию как Executor.
type ExecutorFunc func(ctx context.Context, q CompiledQuery) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, q CompiledQuery) (*Result, error) {
	return f(ctx, q)
}

var (
	idMu    sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func newQueryID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Execute вызывает исполнитель ровно один раз и заполняет Metadata.
// Data не трогаем, кроме дофильтрации по q.Residual (и пагинации в памяти,
// которая в этом случае не попала в SQL).
func Execute(ctx context.Context, exec Executor, q CompiledQuery) (*Result, error) {
	started := time.Now()
	res, err := exec.Execute(ctx, q)
	elapsed := time.Since(started)

	status := "ok"
	if err != nil {
		status = "error"
	}
	queryDuration.WithLabelValues(q.Source.ID, status).Observe(elapsed.Seconds())
	queriesTotal.WithLabelValues(q.Source.ID, status).Inc()

	if err != nil {
		slog.Debug("query failed", "source", q.Source.ID, "err", err, "elapsed", elapsed)
		return nil, fmt.Errorf("execute %s: %w", q.Source.ID, err)
	}
	if res == nil {
		res = &Result{}
	}

	if q.Residual != nil {
		rows := filter.Apply(res.Data, q.Residual)
		res.Total = len(rows)
		res.Data = paginate(rows, q.Limit, q.Offset)
	}

	if q.Limit != nil && *q.Limit > 0 && res.Page == 0 {
		limit := *q.Limit
		offset := 0
		if q.Offset != nil {
			offset = *q.Offset
		}
		res.PageSize = limit
		res.Page = offset/limit + 1
		res.TotalPages = (res.Total + limit - 1) / limit
	}

	res.Metadata = Metadata{
		QueryID:         newQueryID(),
		ExecutionTimeMs: float64(elapsed.Microseconds()) / 1000,
		Cached:          false,
		Source:          q.Source.ID,
	}
	slog.Debug("query executed",
		"id", res.Metadata.QueryID,
		"source", q.Source.ID,
		"rows", len(res.Data),
		"total", res.Total,
		"ms", res.Metadata.ExecutionTimeMs,
	)
	return res, nil
}

func paginate(rows []filter.Record, limit, offset *int) []filter.Record {
	start := 0
	if offset != nil {
		start = *offset
	}
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if limit != nil && start+*limit < end {
		end = start + *limit
	}
	return rows[start:end]
}
