package executor

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// serializeValue converts a scanned database value into a JSON-safe
// representation: fixed-point numbers become floats, date/time values
// become ISO-8601 text, binary values become hex text. Everything else
// passes through unchanged.
func serializeValue(v any, dbType string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		switch normalizeType(dbType) {
		case "NUMERIC", "DECIMAL", "MONEY":
			if f, err := strconv.ParseFloat(string(val), 64); err == nil {
				return f
			}
			return string(val)
		case "BYTEA", "BLOB":
			return hex.EncodeToString(val)
		default:
			return string(val)
		}
	default:
		return v
	}
}

// normalizeType strips precision qualifiers, e.g. "NUMERIC(10,2)" → "NUMERIC".
func normalizeType(dbType string) string {
	t := strings.ToUpper(dbType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
