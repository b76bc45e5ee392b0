package store

import (
	"context"
	"fmt"
	"time"
)

// Interaction is one append-only audit row. The engine writes exactly one
// per terminal outcome; nothing in the engine ever reads them back.
type Interaction struct {
	ClientIP        string
	Method          string
	Path            string
	QueryParams     string
	SemanticKey     string
	HeadersJSON     string
	RequestBody     *string
	ResponseBody    *string
	ResponseStatus  int
	ResponseHeaders *string
	RequestedAt     time.Time
}

// SaveInteraction appends an audit record.
func (s *Store) SaveInteraction(ctx context.Context, in *Interaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (
			client_ip, method, path, query_params, semantic_key,
			headers_json, request_body, response_body,
			response_status, response_headers, requested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ClientIP, in.Method, in.Path, in.QueryParams, in.SemanticKey,
		in.HeadersJSON, in.RequestBody, in.ResponseBody,
		in.ResponseStatus, in.ResponseHeaders, in.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}
	return nil
}

// InteractionCount is used by tests to assert the one-record-per-outcome
// invariant.
func (s *Store) InteractionCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}
