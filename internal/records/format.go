package records

import (
	"strings"
	"time"

	"dataview/internal/filter"
	"dataview/internal/reference"
	"dataview/internal/schema"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	dateLayout     = "1/2/2006"
	datetimeLayout = "1/2/2006, 3:04:05 PM"
)

var dateInputs = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Formatter превращает значение колонки в строку для отображения.
// Нулевое значение готово к работе: en-US, UTC, без справочников.
type Formatter struct {
	Lang     language.Tag
	Location *time.Location
	Catalogs reference.Catalogs
}

var defaultFormatter = Formatter{Lang: language.AmericanEnglish, Location: time.UTC}

// FormatColumnValue: форматирование с настройками по умолчанию.
func FormatColumnValue(value any, column schema.ColumnDefinition) string {
	return defaultFormatter.Format(value, column)
}

func (f Formatter) Format(value any, column schema.ColumnDefinition) string {
	if value == nil {
		return ""
	}
	if column.Format == nil {
		return filter.ToString(value)
	}
	cf := column.Format

	switch cf.Type {
	case schema.FormatCurrency:
		n, ok := filter.ToNumber(value)
		if !ok {
			return filter.ToString(value)
		}
		code := strings.ToUpper(strings.TrimSpace(cf.Currency))
		if code == "" {
			code = "USD"
		}
		unit, err := currency.ParseISO(code)
		if err != nil {
			unit = currency.USD
		}
		return f.printer().Sprint(currency.Symbol(unit.Amount(n)))

	case schema.FormatNumber:
		n, ok := filter.ToNumber(value)
		if !ok {
			return filter.ToString(value)
		}
		return f.printer().Sprint(number.Decimal(n, number.Scale(decimals(cf, 0))))

	case schema.FormatPercentage:
		n, ok := filter.ToNumber(value)
		if !ok {
			return filter.ToString(value)
		}
		return f.printer().Sprint(number.Percent(n, number.Scale(decimals(cf, 0))))

	case schema.FormatDate, schema.FormatDatetime:
		t, ok := asTime(value)
		if !ok {
			return filter.ToString(value)
		}
		t = t.In(f.location())
		if cf.Type == schema.FormatDate {
			return t.Format(dateLayout)
		}
		return t.Format(datetimeLayout)

	case schema.FormatBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
		return filter.ToString(value)

	case schema.FormatEnum:
		code := filter.ToString(value)
		if label, ok := f.Catalogs.Label(cf.Catalog, code); ok {
			return label
		}
		return code
	}
	return filter.ToString(value)
}

// FormatRecord форматирует видимые колонки одной записи.
func (f Formatter) FormatRecord(r Record, columns []schema.ColumnDefinition) map[string]string {
	out := make(map[string]string, len(columns))
	for _, c := range columns {
		v, _ := filter.Resolve(r, c.Field)
		out[c.Field] = f.Format(v, c)
	}
	return out
}

func (f Formatter) printer() *message.Printer {
	tag := f.Lang
	if tag == language.Und {
		tag = language.AmericanEnglish
	}
	return message.NewPrinter(tag)
}

func (f Formatter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

func decimals(cf *schema.ColumnFormat, def int) int {
	if cf.Decimals == nil || *cf.Decimals < 0 {
		return def
	}
	return *cf.Decimals
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateInputs {
			if d, err := time.Parse(layout, s); err == nil {
				return d, true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := filter.ToNumber(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
