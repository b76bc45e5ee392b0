// Package engine drives a request from identity computation through lookup,
// fabrication, persistence, and audit to a terminal outcome. It owns the
// ordering guarantees: gate before lookup, exact path before canonical
// before vector, rate check only after every lookup tier has missed.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"mirage/internal/auth"
	"mirage/internal/gate"
	"mirage/internal/ratelimit"
	"mirage/internal/request"
	"mirage/internal/store"
	"mirage/internal/synth"
)

// Fabricator generates a response for an endpoint no lookup tier matched.
type Fabricator interface {
	Fabricate(ctx context.Context, req *request.InboundRequest) (*synth.Fabrication, error)
}

// Verifier checks a bearer token and surfaces the auth error taxonomy.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Engine is the resolution state machine. All fields are set at construction
// and never mutated; the engine is safe for concurrent use.
type Engine struct {
	store     *store.Store
	gate      gate.Locker
	limiter   ratelimit.Limiter
	fab       Fabricator
	embed     synth.Embedder
	verifier  Verifier
	threshold float64
	logger    *slog.Logger
}

func New(st *store.Store, locker gate.Locker, limiter ratelimit.Limiter, fab Fabricator, embed synth.Embedder, verifier Verifier, threshold float64, logger *slog.Logger) *Engine {
	return &Engine{
		store:     st,
		gate:      locker,
		limiter:   limiter,
		fab:       fab,
		embed:     embed,
		verifier:  verifier,
		threshold: threshold,
		logger:    logger,
	}
}

// Get resolves a read. Exactly one of: replay a stored resource, fabricate
// and persist a new one, reject over rate budget, or yield to a concurrent
// fabrication of the same fingerprint.
func (e *Engine) Get(ctx context.Context, req *request.InboundRequest) (*Outcome, error) {
	return e.locked(ctx, req, func() (*Outcome, error) {
		res, embedding, canonical, err := e.resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return e.replay(ctx, req, res)
		}

		limited, retryAfter, err := e.limiter.Allow(ctx, req.ClientIP)
		if err != nil {
			return nil, err
		}
		if limited {
			seconds := int(retryAfter.Seconds())
			out := &Outcome{
				Kind:       OutcomeRateLimited,
				Status:     429,
				Body:       store.ObjectValue(map[string]any{"error": "Rate limit exceeded. Try again later.", "retry_after": seconds}),
				Headers:    defaultHeaders(),
				RetryAfter: seconds,
			}
			return out, e.audit(ctx, req, out)
		}

		return e.fabricate(ctx, req, canonical, embedding)
	})
}

// Mutate resolves a write (POST, PUT, PATCH). A hit on a structured body
// demands a valid token and a field-safe payload before merging; a hit on
// anything else replays it untouched. A full miss fabricates exactly like a
// read but without the rate check.
func (e *Engine) Mutate(ctx context.Context, req *request.InboundRequest, token string) (*Outcome, error) {
	return e.locked(ctx, req, func() (*Outcome, error) {
		res, embedding, canonical, err := e.resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return e.fabricate(ctx, req, canonical, embedding)
		}
		if res.Body.Kind != store.Object {
			return e.replay(ctx, req, res)
		}
		return e.merge(ctx, req, res, token)
	})
}

// Delete acknowledges without deleting. The resource survives; only the
// audit trail records the attempt.
func (e *Engine) Delete(ctx context.Context, req *request.InboundRequest) (*Outcome, error) {
	out := &Outcome{
		Kind:    OutcomeDeleted,
		Status:  204,
		Headers: defaultHeaders(),
	}
	return out, e.audit(ctx, req, out)
}

// locked runs fn while holding the fingerprint gate. A contended gate
// short-circuits to OutcomeLocked, the one terminal branch with no audit
// record. Release uses a detached context so an expired request deadline
// cannot leak the lock.
func (e *Engine) locked(ctx context.Context, req *request.InboundRequest, fn func() (*Outcome, error)) (*Outcome, error) {
	fp := req.Fingerprint()
	ok, err := e.gate.Acquire(ctx, fp)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Debug("fingerprint gate contended", slog.String("fingerprint", fp))
		return &Outcome{Kind: OutcomeLocked, Status: 204, Headers: defaultHeaders()}, nil
	}
	defer func() {
		if err := e.gate.Release(context.WithoutCancel(ctx), fp); err != nil {
			e.logger.Warn("gate release failed", slog.String("fingerprint", fp), slog.String("error", err.Error()))
		}
	}()

	return fn()
}

// resolve walks the lookup tiers. The embedding and canonical key are only
// computed after an exact-path miss and are returned so a subsequent
// fabrication reuses them instead of embedding twice.
func (e *Engine) resolve(ctx context.Context, req *request.InboundRequest) (*store.Resource, []float32, string, error) {
	res, err := e.store.LookupByPath(ctx, req.FullPath)
	if err != nil || res != nil {
		return res, nil, "", err
	}

	embedding, err := e.embed.Embed(ctx, req.SemanticKey())
	if err != nil {
		return nil, nil, "", err
	}
	canonical := req.Canonical(req.Method)

	res, err = e.store.Resolve(ctx, req.FullPath, canonical, embedding, e.threshold)
	return res, embedding, canonical, err
}

func (e *Engine) replay(ctx context.Context, req *request.InboundRequest, res *store.Resource) (*Outcome, error) {
	out := &Outcome{
		Kind:    OutcomeReplay,
		Status:  res.Status,
		Body:    res.Body,
		Headers: frame(res.Headers),
	}
	return out, e.audit(ctx, req, out)
}

func (e *Engine) fabricate(ctx context.Context, req *request.InboundRequest, canonical string, embedding []float32) (*Outcome, error) {
	fab, err := e.fab.Fabricate(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &store.Resource{
		Path:    &req.FullPath,
		Body:    fab.Body,
		Status:  fab.Status,
		Headers: fab.Headers,
	}
	if canonical != "" {
		res.CanonicalKey = &canonical
	}
	if err := e.store.Create(ctx, res, embedding); err != nil {
		return nil, err
	}
	e.logger.Info("fabricated resource",
		slog.Int64("resource_id", res.ID),
		slog.String("path", req.FullPath),
		slog.Int("status", fab.Status))

	out := &Outcome{
		Kind:    OutcomeFabricated,
		Status:  fab.Status,
		Body:    fab.Body,
		Headers: frame(fab.Headers),
	}
	return out, e.audit(ctx, req, out)
}

// merge applies a mutation to a structured body: verify the token, reject
// unknown fields (identifier keys are exempt from the check but merge like
// any other), shallow-overwrite, persist, replay the merged body. Status
// and headers never change after creation.
func (e *Engine) merge(ctx context.Context, req *request.InboundRequest, res *store.Resource, token string) (*Outcome, error) {
	if _, err := e.verifier.Verify(token); err != nil {
		out := &Outcome{
			Kind:    OutcomeUnauthorized,
			Status:  401,
			Body:    store.ObjectValue(map[string]any{"detail": authDetail(err)}),
			Headers: frame(res.Headers),
			Detail:  authDetail(err),
		}
		return out, e.audit(ctx, req, out)
	}

	incoming := req.Body.AsMap()
	for k := range incoming {
		if k == "id" || k == "_id" {
			continue
		}
		if _, known := res.Body.Object[k]; !known {
			out := &Outcome{
				Kind:    OutcomeSchemaViolation,
				Status:  400,
				Body:    store.ObjectValue(map[string]any{"error": "Unknown field: " + k}),
				Headers: frame(res.Headers),
				Field:   k,
			}
			return out, e.audit(ctx, req, out)
		}
	}

	merged := make(map[string]any, len(res.Body.Object))
	for k, v := range res.Body.Object {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}

	if err := e.store.UpdateBody(ctx, res.ID, store.ObjectValue(merged)); err != nil {
		return nil, err
	}

	out := &Outcome{
		Kind:    OutcomeMerged,
		Status:  200,
		Body:    store.ObjectValue(merged),
		Headers: frame(res.Headers),
	}
	return out, e.audit(ctx, req, out)
}

func authDetail(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing token"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// audit writes the single append-only record for a terminal outcome.
func (e *Engine) audit(ctx context.Context, req *request.InboundRequest, out *Outcome) error {
	headersJSON, _ := json.Marshal(req.Headers)

	in := &store.Interaction{
		ClientIP:       req.ClientIP,
		Method:         req.Method,
		Path:           req.FullPath,
		QueryParams:    req.QueryJSON(),
		SemanticKey:    req.SemanticKey(),
		HeadersJSON:    string(headersJSON),
		ResponseStatus: out.Status,
		RequestedAt:    req.ReceivedAt,
	}

	if req.Body.Kind != request.BodyNone {
		body := req.Body.JSON()
		in.RequestBody = &body
	}
	if s := out.Body.String(); s != "" {
		in.ResponseBody = &s
	}
	if len(out.Headers) > 0 {
		if b, err := json.Marshal(out.Headers); err == nil {
			s := string(b)
			in.ResponseHeaders = &s
		}
	}

	return e.store.SaveInteraction(ctx, in)
}
