package executor

import (
	"fmt"
	"strconv"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

// bindNamed rewrites :name placeholders to driver placeholders ($1, $2, ...
// for postgres, ? otherwise) and collects the bound values in order.
// Values are always passed to the driver separately, never interpolated
// into the statement text. Placeholders inside quoted strings or quoted
// identifiers are left alone, as is the :: cast operator.
func bindNamed(sql string, params map[string]any, driver string) (string, []any, error) {
	var (
		out          []byte
		args         []any
		inSingle     bool
		inDouble     bool
		placeholders int
	)

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == ':' && !inSingle && !inDouble:
			// Skip :: casts entirely.
			if i+1 < len(sql) && sql[i+1] == ':' {
				out = append(out, ':', ':')
				i++
				continue
			}
			if i > 0 && sql[i-1] == ':' {
				break
			}
			start := i + 1
			end := start
			for end < len(sql) && isNameChar(sql[end]) {
				end++
			}
			if end == start {
				break
			}
			name := sql[start:end]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: missing value for parameter :%s",
					domain.ErrExecutionFailed, name)
			}
			args = append(args, value)
			placeholders++
			if driver == "postgres" {
				out = append(out, '$')
				out = strconv.AppendInt(out, int64(placeholders), 10)
			} else {
				out = append(out, '?')
			}
			i = end - 1
			continue
		}

		out = append(out, c)
	}

	return string(out), args, nil
}

func isNameChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
