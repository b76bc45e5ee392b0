package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Resource is a fabricated endpoint as persisted. Path and CanonicalKey are
// each unique across the store; either may be nil.
type Resource struct {
	ID           int64
	CanonicalKey *string
	Path         *string
	Body         Value
	Status       int
	Headers      map[string]any
}

const resourceColumns = "id, canonical_key, path, response_body, response_status, response_headers"

func scanResource(row *sql.Row) (*Resource, error) {
	var (
		r       Resource
		body    []byte
		headers []byte
	)
	err := row.Scan(&r.ID, &r.CanonicalKey, &r.Path, &body, &r.Status, &headers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan resource: %w", err)
	}

	r.Body = Decode(body)
	if hv := Decode(headers); hv.Kind == Object {
		r.Headers = hv.Object
	}
	return &r, nil
}

// LookupByPath finds a resource by exact path equality.
func (s *Store) LookupByPath(ctx context.Context, path string) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE path = ?`, path)
	return scanResource(row)
}

// LookupByCanonical finds a resource by its canonical signature.
func (s *Store) LookupByCanonical(ctx context.Context, key string) (*Resource, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE canonical_key = ?`, key)
	return scanResource(row)
}

// LookupByVector finds the single nearest neighbor of the embedding and
// accepts it when similarity clears the threshold. Similarity is defined as
// 1 - cosine_distance; the mapping is pinned and decreases monotonically
// with distance. No-op while the embeddings table is empty.
func (s *Store) LookupByVector(ctx context.Context, embedding []float32, threshold float64) (*Resource, error) {
	if !s.vec || len(embedding) == 0 {
		return nil, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resource_embeddings`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	var (
		r        Resource
		body     []byte
		headers  []byte
		distance float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.canonical_key, r.path, r.response_body, r.response_status, r.response_headers,
		       vec_distance_cosine(e.embedding, ?) AS distance
		FROM resource_embeddings e
		JOIN resources r ON r.id = e.rowid
		ORDER BY distance ASC
		LIMIT 1`,
		encodeEmbedding(embedding),
	).Scan(&r.ID, &r.CanonicalKey, &r.Path, &body, &r.Status, &headers, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	similarity := 1 - distance
	if similarity < threshold {
		s.logger.Debug("nearest neighbor below threshold",
			slog.Float64("similarity", similarity), slog.Float64("threshold", threshold))
		return nil, nil
	}

	r.Body = Decode(body)
	if hv := Decode(headers); hv.Kind == Object {
		r.Headers = hv.Object
	}
	return &r, nil
}

// Resolve runs the lookup fallback chain: exact path, canonical signature,
// then vector similarity, short-circuiting on the first hit. The order is
// fixed; an exact hit must never be shadowed by a vector match.
func (s *Store) Resolve(ctx context.Context, path, canonicalKey string, embedding []float32, threshold float64) (*Resource, error) {
	res, err := s.LookupByPath(ctx, path)
	if err != nil || res != nil {
		return res, err
	}

	if canonicalKey != "" {
		res, err = s.LookupByCanonical(ctx, canonicalKey)
		if err != nil || res != nil {
			return res, err
		}
	}

	if len(embedding) > 0 {
		return s.LookupByVector(ctx, embedding, threshold)
	}

	return nil, nil
}

// Create persists a resource row and its embedding row together and assigns
// the store ID. Both writes commit in one transaction: a reader never sees
// a resource without its embedding.
func (s *Store) Create(ctx context.Context, r *Resource, embedding []float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO resources (canonical_key, path, response_body, response_status, response_headers, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.CanonicalKey, r.Path, r.Body.Encode(), r.Status, encodeHeaders(r.Headers), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resource id: %w", err)
	}
	r.ID = id

	if s.vec && len(embedding) > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resource_embeddings (rowid, embedding) VALUES (?, ?)`,
			id, encodeEmbedding(embedding),
		); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

// UpdateBody replaces only the body field of an existing resource. Status
// and headers are immutable after creation.
func (s *Store) UpdateBody(ctx context.Context, id int64, body Value) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE resources SET response_body = ? WHERE id = ?`, body.Encode(), id); err != nil {
		return fmt.Errorf("update resource %d: %w", id, err)
	}
	return nil
}

func encodeHeaders(h map[string]any) []byte {
	if h == nil {
		return nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil
	}
	return data
}
