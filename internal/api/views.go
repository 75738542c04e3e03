package api

import (
	"net/http"

	"dataview/internal/filter"
	"dataview/internal/query"
	"dataview/internal/schema"

	"github.com/gin-gonic/gin"
)

// ===== VIEW HANDLERS =====

// bindOverrides: POST: JSON-тело query.Overrides, GET: query string.
func bindOverrides(c *gin.Context, src schema.DataSource) (query.Overrides, error) {
	if c.Request.Method == http.MethodGet {
		return ParseOverrides(src, c.Request.URL.Query())
	}
	var ov query.Overrides
	if c.Request.ContentLength == 0 {
		return ov, nil
	}
	if err := c.ShouldBindJSON(&ov); err != nil {
		return ov, badRequest("invalid overrides: " + err.Error())
	}
	return ov, nil
}

func (s *Server) compileView(c *gin.Context) (schema.DataView, query.CompiledQuery, bool) {
	id := c.Param("id")
	view, ok := s.Registry.GetDataView(id)
	if !ok {
		writeError(c, &query.NotFoundError{Kind: "data view", ID: id})
		return view, query.CompiledQuery{}, false
	}
	ov, err := bindOverrides(c, view.Source)
	if err != nil {
		writeError(c, err)
		return view, query.CompiledQuery{}, false
	}
	q, err := s.Compiler.CompileView(id, &ov)
	if err != nil {
		writeError(c, err)
		return view, query.CompiledQuery{}, false
	}
	return view, q, true
}

// CompileViewHandler отдаёт скомпилированный запрос без исполнения.
func CompileViewHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, q, ok := s.compileView(c); ok {
			c.JSON(http.StatusOK, q)
		}
	}
}

type rowsResponse struct {
	*query.Result
	Formatted []map[string]string `json:"formatted,omitempty"`
}

func (s *Server) respondRows(c *gin.Context, res *query.Result, columns []schema.ColumnDefinition) {
	out := rowsResponse{Result: res}
	if c.Query("_format") == "1" || c.Query("_format") == "true" {
		f := s.Formatter()
		out.Formatted = make([]map[string]string, len(res.Data))
		for i, r := range res.Data {
			out.Formatted[i] = f.FormatRecord(r, columns)
		}
	}
	c.JSON(http.StatusOK, out)
}

// ViewRowsHandler компилирует представление и исполняет его настроенным исполнителем.
func ViewRowsHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Executor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})
			return
		}
		view, q, ok := s.compileView(c)
		if !ok {
			return
		}
		res, err := query.Execute(c.Request.Context(), s.Executor, q)
		if err != nil {
			writeError(c, err)
			return
		}
		s.respondRows(c, res, view.VisibleColumns())
	}
}

type viewQueryReq struct {
	Records   []filter.Record `json:"records"`
	Overrides query.Overrides `json:"overrides"`
}

// ViewQueryHandler исполняет представление над присланными записями, без базы.
func ViewQueryHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		view, ok := s.Registry.GetDataView(id)
		if !ok {
			writeError(c, &query.NotFoundError{Kind: "data view", ID: id})
			return
		}
		var req viewQueryReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
			return
		}
		rows, errs := ValidateRecords(view.Source, req.Records)
		if len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		q, err := s.Compiler.CompileView(id, &req.Overrides)
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := query.Execute(c.Request.Context(), &query.MemoryExecutor{Rows: rows, Columns: view.Columns}, InMemoryQuery(q))
		if err != nil {
			writeError(c, err)
			return
		}
		s.respondRows(c, res, view.VisibleColumns())
	}
}

type sourceQueryReq struct {
	Records []filter.Record         `json:"records"`
	Select  []string                `json:"select"`
	Filters *filter.Group           `json:"filters"`
	Sorts   []schema.SortDefinition `json:"sorts"`
	GroupBy []string                `json:"groupBy"`
	Having  *filter.Group           `json:"having"`
	Limit   *int                    `json:"limit"`
	Offset  *int                    `json:"offset"`
}

// SourceQueryHandler: произвольный запрос построителем над присланными записями.
func SourceQueryHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, ok := s.resolveSource(c.Param("id"))
		if !ok {
			writeError(c, &query.NotFoundError{Kind: "data source", ID: c.Param("id")})
			return
		}
		var req sourceQueryReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
			return
		}
		rows, errs := ValidateRecords(src, req.Records)
		if len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}

		b := query.NewBuilder(src).
			Select(req.Select...).
			Where(req.Filters).
			OrderBy(req.Sorts...).
			GroupBy(req.GroupBy...).
			Having(req.Having)
		if req.Limit != nil {
			b.Limit(*req.Limit)
		}
		if req.Offset != nil {
			b.Offset(*req.Offset)
		}
		q, err := b.Build()
		if err != nil {
			writeError(c, err)
			return
		}
		res, err := query.Execute(c.Request.Context(), &query.MemoryExecutor{Rows: rows}, InMemoryQuery(q))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ValidateRecords проверяет каждую запись; ошибки помечаются номером строки.
func ValidateRecords(src schema.DataSource, in []filter.Record) ([]filter.Record, []FieldError) {
	out := make([]filter.Record, 0, len(in))
	var errs []FieldError
	for i, r := range in {
		norm, fe := validateRecord(src, r)
		for _, e := range fe {
			e.Row = i
			errs = append(errs, e)
		}
		out = append(out, norm)
	}
	return out, errs
}

// InMemoryQuery приводит операнды фильтров к типам, в которых ValidateRecords
// нормализовал записи.
func InMemoryQuery(q query.CompiledQuery) query.CompiledQuery {
	q.Filters = coerceFilter(q.Source, q.Filters)
	q.Residual = coerceFilter(q.Source, q.Residual)
	return q
}
