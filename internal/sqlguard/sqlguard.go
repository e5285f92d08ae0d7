// Package sqlguard is the lexical gate restricting executable SQL to single
// read-only statements.
//
// This is deliberately a conservative token check, not a parser: it can be
// bypassed by obscure dialect features (comments hiding a second statement,
// vendor-specific syntax). Swapping in an AST-based verifier is a known
// open item; the lexical behavior here is the contract.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

var (
	selectWord = regexp.MustCompile(`\bselect\b`)
	limitWord  = regexp.MustCompile(`(?i)\blimit\b`)
)

// Sanitize trims whitespace and exactly one trailing statement terminator,
// then verifies the statement is a read-only SELECT (or a WITH ... SELECT
// common-table expression). Any terminator remaining in the body rejects
// the statement as stacked.
func Sanitize(sql string) (string, error) {
	cleaned := strings.TrimSpace(sql)
	cleaned = strings.TrimSuffix(cleaned, ";")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", fmt.Errorf("%w: empty statement", domain.ErrUnsafeStatement)
	}
	if strings.Contains(cleaned, ";") {
		return "", fmt.Errorf("%w: multiple statements are not allowed", domain.ErrUnsafeStatement)
	}

	lowered := strings.ToLower(cleaned)
	switch {
	case strings.HasPrefix(lowered, "select"):
		return cleaned, nil
	case strings.HasPrefix(lowered, "with") && selectWord.MatchString(lowered):
		return cleaned, nil
	}

	return "", fmt.Errorf("%w: only SELECT statements are allowed, got %q",
		domain.ErrUnsafeStatement, firstToken(lowered))
}

// HasLimit reports whether the statement already contains a LIMIT clause,
// checked as a whole-word token.
func HasLimit(sql string) bool {
	return limitWord.MatchString(sql)
}

func firstToken(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
