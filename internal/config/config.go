package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port     string `json:"port"`
	DefsDir  string `json:"defsDir"`  // *.dsl и *.yaml определения
	EnumsDir string `json:"enumsDir"` // справочники для формата enum

	// Исполнитель запросов: "" (только компиляция) | "postgres" | "duckdb"
	Driver      string `json:"driver"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`

	LogLevel  string `json:"logLevel"`  // DEBUG | INFO | WARN | ERROR
	LogFormat string `json:"logFormat"` // json | text

	Locale          string `json:"locale"` // BCP 47, для форматирования колонок
	Timezone        string `json:"timezone"`
	DefaultPageSize int    `json:"defaultPageSize"`
}

func def() Config {
	return Config{
		Port:            "8080",
		DefsDir:         "defs",
		EnumsDir:        "reference/enums",
		Driver:          "",
		DBURL:           "",
		AutoMigrate:     false,
		LogLevel:        "INFO",
		LogFormat:       "json",
		Locale:          "en-US",
		Timezone:        "UTC",
		DefaultPageSize: 20,
	}
}

func loadJSON(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Load собирает конфиг: значения по умолчанию -> JSON (если файл есть) ->
// ENV DATAVIEW_* -> флаги из args. Флаг -config подменяет путь к JSON.
func Load(jsonPath string, args []string) (Config, error) {
	// путь к конфигу может прийти флагом, смотрим его до остального
	pre := flag.NewFlagSet("config", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	configPath := pre.String("config", jsonPath, "Path to config JSON")
	_ = pre.Parse(filterConfigFlag(args))
	jsonPath = *configPath

	cfg := def()
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if err := loadJSON(jsonPath, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getenv("DATAVIEW_PORT", cfg.Port)
	cfg.DefsDir = getenv("DATAVIEW_DEFS_DIR", cfg.DefsDir)
	cfg.EnumsDir = getenv("DATAVIEW_ENUMS_DIR", cfg.EnumsDir)
	cfg.Driver = getenv("DATAVIEW_DRIVER", cfg.Driver)
	cfg.DBURL = getenv("DATAVIEW_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("DATAVIEW_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = getenv("DATAVIEW_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("DATAVIEW_LOG_FORMAT", cfg.LogFormat)
	cfg.Locale = getenv("DATAVIEW_LOCALE", cfg.Locale)
	cfg.Timezone = getenv("DATAVIEW_TIMEZONE", cfg.Timezone)
	cfg.DefaultPageSize = getenvInt("DATAVIEW_DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)

	fs := flag.NewFlagSet("dataview", flag.ContinueOnError)
	fs.String("config", jsonPath, "Path to config JSON")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.DefsDir, "defs", cfg.DefsDir, "Path to definitions directory")
	fs.StringVar(&cfg.EnumsDir, "enums", cfg.EnumsDir, "Path to enums directory")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Query executor: postgres | duckdb (empty = compile only)")
	fs.StringVar(&cfg.DBURL, "db", cfg.DBURL, "Database URL / duckdb path")
	auto := fs.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply generated DDL on start (true/false)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json | text")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for column formatting")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Timezone for date formatting")
	fs.IntVar(&cfg.DefaultPageSize, "page-size", cfg.DefaultPageSize, "Default page size")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if b, ok := parseBool(*auto); ok {
		cfg.AutoMigrate = b
	} else {
		return cfg, fmt.Errorf("auto-migrate: invalid bool %q", *auto)
	}

	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Driver {
	case "", "postgres", "duckdb":
	default:
		return fmt.Errorf("unknown driver %q (allowed: postgres, duckdb)", c.Driver)
	}
	if c.Driver == "postgres" && strings.TrimSpace(c.DBURL) == "" {
		return fmt.Errorf("driver postgres requires dbUrl")
	}
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("defaultPageSize must be > 0, got %d", c.DefaultPageSize)
	}
	return nil
}

// filterConfigFlag оставляет в args только -config, чтобы предварительный
// разбор не спотыкался о чужие флаги.
func filterConfigFlag(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		switch {
		case strings.HasPrefix(name, "config="):
			out = append(out, a)
		case name == "config" && a != name && i+1 < len(args):
			out = append(out, a, args[i+1])
			i++
		}
	}
	return out
}
