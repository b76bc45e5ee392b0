package store

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
)

var memCounter int

func newTestStore(t *testing.T) *Store {
	t.Helper()
	memCounter++
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", memCounter)
	s, err := Open(dsn, 4, slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func TestCreateAndLookupByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &Resource{
		Path:         strptr("api/v1/orders"),
		CanonicalKey: strptr("GET:api/v1/orders"),
		Body:         ObjectValue(map[string]any{"orders": []any{}}),
		Status:       200,
		Headers:      map[string]any{"X-Custom": "ok"},
	}

	if err := s.Create(ctx, r, []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.ID == 0 {
		t.Fatal("Create() did not assign an id")
	}

	got, err := s.LookupByPath(ctx, "api/v1/orders")
	if err != nil {
		t.Fatalf("LookupByPath() error = %v", err)
	}
	if got == nil {
		t.Fatal("LookupByPath() = nil, want resource")
	}
	if got.Body.Kind != Object {
		t.Errorf("Body.Kind = %v, want Object", got.Body.Kind)
	}
	if got.Status != 200 {
		t.Errorf("Status = %d, want 200", got.Status)
	}
	if got.Headers["X-Custom"] != "ok" {
		t.Errorf("Headers = %v", got.Headers)
	}
}

func TestLookupByPath_Miss(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LookupByPath(context.Background(), "never/seen")
	if err != nil {
		t.Fatalf("LookupByPath() error = %v", err)
	}
	if got != nil {
		t.Errorf("LookupByPath() = %+v, want nil", got)
	}
}

func TestLookupByCanonical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &Resource{
		Path:         strptr("orders"),
		CanonicalKey: strptr("GET:orders?a=1&b=2"),
		Body:         ObjectValue(map[string]any{"total": float64(2)}),
		Status:       200,
	}
	if err := s.Create(ctx, r, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.LookupByCanonical(ctx, "GET:orders?a=1&b=2")
	if err != nil {
		t.Fatalf("LookupByCanonical() error = %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Errorf("LookupByCanonical() = %+v, want id %d", got, r.ID)
	}
}

func TestResolve_PathBeforeCanonicalBeforeVector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Resource{
		Path:         strptr("items"),
		CanonicalKey: strptr("GET:items"),
		Body:         TextValue("by path"),
		Status:       200,
	}
	if err := s.Create(ctx, first, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Exact path must win even when an embedding is supplied.
	got, err := s.Resolve(ctx, "items", "GET:other", []float32{1, 0, 0, 0}, 0.8)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("Resolve() = %+v, want path hit id %d", got, first.ID)
	}

	// Canonical hit when path misses.
	got, err = s.Resolve(ctx, "different/path", "GET:items", nil, 0.8)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Errorf("Resolve() canonical = %+v, want id %d", got, first.ID)
	}
}

func TestLookupByVector_EmptyTableSkips(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LookupByVector(context.Background(), []float32{1, 0, 0, 0}, 0.8)
	if err != nil {
		t.Fatalf("LookupByVector() error = %v", err)
	}
	if got != nil {
		t.Errorf("LookupByVector() on empty table = %+v, want nil", got)
	}
}

func TestLookupByVector_ThresholdGate(t *testing.T) {
	s := newTestStore(t)
	if !s.VectorEnabled() {
		t.Skip("sqlite-vec not available")
	}
	ctx := context.Background()

	r := &Resource{
		Path:   strptr("vec/target"),
		Body:   TextValue("hello"),
		Status: 200,
	}
	if err := s.Create(ctx, r, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Identical vector: cosine distance 0, similarity 1.
	got, err := s.LookupByVector(ctx, []float32{1, 0, 0, 0}, 0.8)
	if err != nil {
		t.Fatalf("LookupByVector() error = %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatalf("LookupByVector() = %+v, want id %d", got, r.ID)
	}

	// Orthogonal vector: similarity 0, rejected by the threshold.
	got, err = s.LookupByVector(ctx, []float32{0, 1, 0, 0}, 0.8)
	if err != nil {
		t.Fatalf("LookupByVector() error = %v", err)
	}
	if got != nil {
		t.Errorf("orthogonal vector matched: %+v", got)
	}
}

func TestUpdateBody_OnlyBodyChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &Resource{
		Path:    strptr("things/1"),
		Body:    ObjectValue(map[string]any{"name": "old"}),
		Status:  201,
		Headers: map[string]any{"X-Keep": "yes"},
	}
	if err := s.Create(ctx, r, nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := s.UpdateBody(ctx, r.ID, ObjectValue(map[string]any{"name": "new"})); err != nil {
		t.Fatalf("UpdateBody() error = %v", err)
	}

	got, err := s.LookupByPath(ctx, "things/1")
	if err != nil {
		t.Fatalf("LookupByPath() error = %v", err)
	}
	if got.Body.Object["name"] != "new" {
		t.Errorf("body = %v, want updated name", got.Body.Object)
	}
	if got.Status != 201 {
		t.Errorf("Status = %d, update must not touch status", got.Status)
	}
	if got.Headers["X-Keep"] != "yes" {
		t.Errorf("Headers = %v, update must not touch headers", got.Headers)
	}
}

func TestSaveInteractionAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	body := "hello"
	in := &Interaction{
		ClientIP:       "203.0.113.5",
		Method:         "GET",
		Path:           "api/users",
		QueryParams:    "{}",
		SemanticKey:    "GET api/users {} null",
		ResponseBody:   &body,
		ResponseStatus: 200,
	}
	if err := s.SaveInteraction(ctx, in); err != nil {
		t.Fatalf("SaveInteraction() error = %v", err)
	}

	n, err := s.InteractionCount(ctx)
	if err != nil {
		t.Fatalf("InteractionCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("InteractionCount = %d, want 1", n)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.UserExists(ctx, "alice")
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if exists {
		t.Fatal("UserExists() = true before create")
	}

	if err := s.CreateUser(ctx, "alice", "hunter2", "198.51.100.1"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	exists, err = s.UserExists(ctx, "alice")
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if !exists {
		t.Error("UserExists() = false after create")
	}
}
