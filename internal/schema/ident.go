package schema

import (
	"regexp"
	"strings"
)

// Идентификаторы попадают в SQL как есть, поэтому допускаем только
// закрытую форму: name или name.name[.name].
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// aggregate-выражения в select/having/order: count(*), sum(amount) ...
var aggExprRe = regexp.MustCompile(`^(?i:count|sum|avg|min|max)\((\*|[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*)\)$`)

var reserved = map[string]struct{}{
	"select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"from": {}, "into": {}, "values": {}, "union": {}, "drop": {}, "alter": {},
	"create": {}, "grant": {}, "revoke": {}, "having": {},
}

// ValidIdentifier: имя пригодно для прямой подстановки в SQL.
func ValidIdentifier(s string) bool {
	if !identRe.MatchString(s) {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if _, bad := reserved[strings.ToLower(part)]; bad {
			return false
		}
	}
	return true
}

// AggregateExpr разбирает "sum(amount)" -> ("sum", "amount", true).
func AggregateExpr(s string) (fn, field string, ok bool) {
	s = strings.TrimSpace(s)
	m := aggExprRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	open := strings.IndexByte(s, '(')
	return strings.ToLower(s[:open]), m[1], true
}

// Qualified: имя вида table.column.
func Qualified(s string) bool { return strings.Contains(s, ".") }
