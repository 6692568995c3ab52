package insight

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// QuoteIdent double-quotes a column or table identifier, doubling any
// embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString single-quotes a string literal, doubling any embedded
// single quotes (O'Brien -> 'O''Brien').
func QuoteString(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// FormatValue renders a Go value as a SQL literal. The rules are part
// of the interop contract: nil -> NULL, numbers -> bare digits,
// booleans -> TRUE/FALSE, times -> quoted ISO-8601, everything else
// is string-cast and single-quoted with quote doubling.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return QuoteString(val.UTC().Format(time.RFC3339))
	case string:
		return QuoteString(val)
	default:
		return QuoteString(fmt.Sprint(val))
	}
}

// formatValueList renders a parenthesized, comma-joined literal list
// for IN / NOT IN. Non-slice values degrade to a single-element list.
func formatValueList(v any) string {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return "(" + FormatValue(v) + ")"
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = FormatValue(rv.Index(i).Interface())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
