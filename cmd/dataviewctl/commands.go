package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"dataview/internal/api"
	"dataview/internal/duckdb"
	"dataview/internal/filter"
	"dataview/internal/logger"
	"dataview/internal/pg"
	"dataview/internal/query"
	"dataview/internal/schema"
	"dataview/internal/sqlexec"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

type globalOpts struct {
	defs     string
	enums    string
	locale   string
	tz       string
	logLevel string
}

// overrideOpts: общие флаги compile/eval/rows; собираются в query string
// и разбираются так же, как в HTTP API.
type overrideOpts struct {
	page     int
	pageSize int
	sort     string
	nulls    string
	where    []string
}

func (o *overrideOpts) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&o.pageSize, "page-size", 0, "Page size (0 = view default)")
	cmd.Flags().StringVar(&o.sort, "sort", "", "Sort keys, e.g. -amount,id")
	cmd.Flags().StringVar(&o.nulls, "nulls", "", "Null placement for --sort: first | last")
	cmd.Flags().StringArrayVar(&o.where, "where", nil, "Filter field[__op]=value (repeatable)")
}

func (o *overrideOpts) values() url.Values {
	v := url.Values{}
	if o.page > 0 {
		v.Set("_page", strconv.Itoa(o.page))
	}
	if o.pageSize > 0 {
		v.Set("_pageSize", strconv.Itoa(o.pageSize))
	}
	if o.sort != "" {
		v.Set("_sort", o.sort)
	}
	if o.nulls != "" {
		v.Set("nulls", o.nulls)
	}
	for _, w := range o.where {
		key, val, _ := strings.Cut(w, "=")
		v.Add(strings.TrimSpace(key), val)
	}
	return v
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	root := &cobra.Command{
		Use:           "dataviewctl",
		Short:         "Inspect, compile and evaluate data view definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// логи в stderr, чтобы не мешать выводу команд
			slog.SetDefault(logger.New(logger.Config{Level: g.logLevel, Format: "text"}, cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&g.defs, "defs", "defs", "Path to definitions directory")
	root.PersistentFlags().StringVar(&g.enums, "enums", "reference/enums", "Path to enums directory")
	root.PersistentFlags().StringVar(&g.locale, "locale", "en-US", "Locale for column formatting")
	root.PersistentFlags().StringVar(&g.tz, "tz", "UTC", "Timezone for date formatting")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "WARN", "Log level")

	root.AddCommand(
		newLintCmd(g),
		newCompileCmd(g),
		newEvalCmd(g),
		newDDLCmd(g),
		newLoadCmd(g),
		newRowsCmd(g),
	)
	return root
}

// loadServer читает определения и справочники тем же путём, что и сервер.
func loadServer(g *globalOpts) (*api.Server, error) {
	lang, err := language.Parse(g.locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", g.locale, err)
	}
	loc, err := time.LoadLocation(g.tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", g.tz, err)
	}
	srv := api.NewServer(schema.NewRegistry(), api.Options{
		Lang: lang, Location: loc, DefsDir: g.defs, EnumsDir: g.enums,
	})
	if _, err := srv.Reload(g.defs, g.enums); err != nil {
		return nil, err
	}
	return srv, nil
}

func newLintCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check definitions for blocking issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			var le *api.LintError
			if errors.As(err, &le) {
				for _, it := range le.Issues {
					fmt.Fprintln(cmd.OutOrStdout(), it.String())
				}
				return fmt.Errorf("%d issue(s) found", len(le.Issues))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d sources, %d views\n",
				len(srv.Registry.DataSources()), len(srv.Registry.DataViews()))
			return nil
		},
	}
}

func compileFor(srv *api.Server, viewID string, o *overrideOpts) (schema.DataView, query.CompiledQuery, error) {
	view, ok := srv.Registry.GetDataView(viewID)
	if !ok {
		return view, query.CompiledQuery{}, &query.NotFoundError{Kind: "data view", ID: viewID}
	}
	ov, err := api.ParseOverrides(view.Source, o.values())
	if err != nil {
		return view, query.CompiledQuery{}, err
	}
	q, err := srv.Compiler.CompileView(viewID, &ov)
	return view, q, err
}

func newCompileCmd(g *globalOpts) *cobra.Command {
	o := &overrideOpts{}
	var placeholder string
	cmd := &cobra.Command{
		Use:   "compile <view-id>",
		Short: "Print the SQL compiled from a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			if err != nil {
				return err
			}
			_, q, err := compileFor(srv, args[0], o)
			if err != nil {
				return err
			}
			switch placeholder {
			case "question", "":
			case "dollar":
				q.SQL = sqlexec.Rebind(sqlexec.Dollar, q.SQL)
				q.CountSQL = sqlexec.Rebind(sqlexec.Dollar, q.CountSQL)
			default:
				return fmt.Errorf("unknown placeholder style %q (allowed: question, dollar)", placeholder)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"sql":      q.SQL,
				"params":   q.Params,
				"countSql": q.CountSQL,
				"residual": q.Residual,
			})
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&placeholder, "placeholder", "question", "Placeholder style: question | dollar")
	return cmd
}

func readRecords(path string) ([]filter.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []filter.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// validated читает файл записей и проверяет его по полям источника.
func validated(w io.Writer, src schema.DataSource, path string) ([]filter.Record, error) {
	raw, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	rows, errs := api.ValidateRecords(src, raw)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(w, "row %d: %s (%s)\n", e.Row, e.Message, e.Code)
		}
		return nil, fmt.Errorf("%d invalid value(s) in %s", len(errs), path)
	}
	return rows, nil
}

func newEvalCmd(g *globalOpts) *cobra.Command {
	o := &overrideOpts{}
	var (
		recordsPath string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "eval <view-id>",
		Short: "Evaluate a view over a JSON array of records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			if err != nil {
				return err
			}
			view, q, err := compileFor(srv, args[0], o)
			if err != nil {
				return err
			}
			rows, err := validated(cmd.ErrOrStderr(), view.Source, recordsPath)
			if err != nil {
				return err
			}
			exec := &query.MemoryExecutor{Rows: rows, Columns: view.Columns}
			res, err := query.Execute(cmd.Context(), exec, api.InMemoryQuery(q))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), srv, view, res, asJSON)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&recordsPath, "records", "", "JSON file with an array of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func newDDLCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "Print PostgreSQL DDL for table sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			if err != nil {
				return err
			}
			ddl, err := pg.GenerateDDL(srv.Registry.DataSources())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(ddl))
			for k := range ddl {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n%s\n", k, ddl[k])
			}
			return nil
		},
	}
}

func newLoadCmd(g *globalOpts) *cobra.Command {
	var dbPath, recordsPath string
	cmd := &cobra.Command{
		Use:   "load <source-id>",
		Short: "Create the source table in a DuckDB file and insert records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			if err != nil {
				return err
			}
			src, ok := srv.Registry.GetDataSource(args[0])
			if !ok {
				return &query.NotFoundError{Kind: "data source", ID: args[0]}
			}
			rows, err := validated(cmd.ErrOrStderr(), src, recordsPath)
			if err != nil {
				return err
			}
			db, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := duckdb.CreateTable(ctx, db, src); err != nil {
				return err
			}
			if err := duckdb.Load(ctx, db, src, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d row(s) into %s\n", len(rows), src.Table())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB database file")
	cmd.Flags().StringVar(&recordsPath, "records", "", "JSON file with an array of records")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func newRowsCmd(g *globalOpts) *cobra.Command {
	o := &overrideOpts{}
	var (
		dbPath string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "rows <view-id>",
		Short: "Run a view against a DuckDB file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := loadServer(g)
			if err != nil {
				return err
			}
			view, q, err := compileFor(srv, args[0], o)
			if err != nil {
				return err
			}
			db, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := query.Execute(cmd.Context(), duckdb.NewExecutor(db), q)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), srv, view, res, asJSON)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB database file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func printResult(w io.Writer, srv *api.Server, view schema.DataView, res *query.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	cols := view.VisibleColumns()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	head := make([]string, len(cols))
	for i, c := range cols {
		head[i] = c.Label
		if head[i] == "" {
			head[i] = c.Field
		}
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))

	f := srv.Formatter()
	for _, r := range res.Data {
		cells := f.FormatRecord(r, cols)
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = cells[c.Field]
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.Page > 0 {
		fmt.Fprintf(w, "page %d/%d, total %d\n", res.Page, res.TotalPages, res.Total)
	} else {
		fmt.Fprintf(w, "total %d\n", res.Total)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
