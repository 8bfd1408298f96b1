// Package errors provides the structured error taxonomy used across the
// retrieval and indexing core (spec §7): every user-visible failure carries
// a stable Kind, a Severity, and a retryability flag so callers (the MCP
// tool layer, the indexer, the watcher queue) can react uniformly instead
// of string-matching messages.
package errors

// Kind classifies an error into one of the seven failure modes the core
// distinguishes.
type Kind string

const (
	// KindConfigInvalid: missing required config, out-of-range numeric,
	// incompatible base-URL/project combination. Fatal at startup.
	KindConfigInvalid Kind = "config_invalid"

	// KindDimensionMismatch: query/vector/collection dimension disagreement.
	// The indexer recreates the collection; a search request aborts.
	KindDimensionMismatch Kind = "dimension_mismatch"

	// KindExternalUnavailable: embedding/vector/LLM reachability failure.
	// Retried locally (bounded); surfaces if all retries fail.
	KindExternalUnavailable Kind = "external_unavailable"

	// KindParseFailed: AST load or parse failure. Recovered by generic
	// chunking; logged as a warning, never fatal.
	KindParseFailed Kind = "parse_failed"

	// KindBudgetExceeded: re-ranker/sparse-scorer deadline, or context
	// budget overrun. Callers degrade gracefully rather than fail.
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindNotFound: requested chunk id or file has no chunks.
	KindNotFound Kind = "not_found"

	// KindRateLimited: upstream refused. Retry with exponential backoff up
	// to a small cap, then surface.
	KindRateLimited Kind = "rate_limited"
)

// Severity indicates how a Kind should affect the caller's control flow.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// defaultSeverity returns the severity a Kind carries unless overridden.
func defaultSeverity(k Kind) Severity {
	switch k {
	case KindConfigInvalid:
		return SeverityFatal
	case KindParseFailed, KindBudgetExceeded:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// defaultRetryable reports whether a Kind is retryable unless overridden.
func defaultRetryable(k Kind) bool {
	switch k {
	case KindExternalUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}
