package engine

import "mirage/internal/store"

// OutcomeKind classifies the terminal branch a request reached.
type OutcomeKind int

const (
	// OutcomeReplay serves previously fabricated content unchanged.
	OutcomeReplay OutcomeKind = iota
	// OutcomeFabricated is a first-seen response freshly generated and persisted.
	OutcomeFabricated
	// OutcomeMerged is a mutation accepted into an existing structured body.
	OutcomeMerged
	// OutcomeLocked means another request holds the fabrication gate. The
	// client retries; no audit record is written.
	OutcomeLocked
	// OutcomeRateLimited rejects novel-path exploration over budget.
	OutcomeRateLimited
	// OutcomeUnauthorized rejects a mutation without a valid token.
	OutcomeUnauthorized
	// OutcomeSchemaViolation rejects a mutation introducing unknown fields.
	OutcomeSchemaViolation
	// OutcomeDeleted acknowledges a DELETE without touching anything.
	OutcomeDeleted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReplay:
		return "replay"
	case OutcomeFabricated:
		return "fabricated"
	case OutcomeMerged:
		return "merged"
	case OutcomeLocked:
		return "locked"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeSchemaViolation:
		return "schema_violation"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Outcome is the engine's terminal answer for one request, with headers
// already sanitized and merged over the default spoofed set.
type Outcome struct {
	Kind    OutcomeKind
	Status  int
	Body    store.Value
	Headers map[string]string

	// RetryAfter is the remaining window in seconds for rate-limited outcomes.
	RetryAfter int
	// Field names the offending key for schema violations.
	Field string
	// Detail carries the auth failure message for unauthorized outcomes.
	Detail string
}
