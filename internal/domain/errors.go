package domain

import "errors"

// Error taxonomy for the gateway. Callers branch with errors.Is; wrapped
// messages carry the actionable detail.
var (
	// ErrUnknownDomain means the requested domain is not configured.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrNoDefaultDomain means no domain was given and none could be inferred.
	ErrNoDefaultDomain = errors.New("no default domain")

	// ErrInvalidConfiguration covers malformed domain config, duplicate
	// domain names and non-positive limits. Raised at startup or before
	// any database access, never mid-query.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsafeStatement means the SQL failed the read-only lexical gate.
	ErrUnsafeStatement = errors.New("unsafe statement")

	// ErrExecutionFailed means the database rejected or could not run the
	// statement. The wrapped message carries the database-reported error
	// text and SQLSTATE code only.
	ErrExecutionFailed = errors.New("execution failed")
)
