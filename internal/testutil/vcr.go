// Package testutil provides HTTP record/replay helpers for tests that
// exercise the generative and embedding collaborators.
package testutil

import (
	"net/http"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewRecorder creates a VCR recorder over the given cassette path. In
// recording mode traffic passes through rt and is written on Stop; in
// replay mode rt may be nil.
func NewRecorder(t *testing.T, cassettePath string, mode recorder.Mode, rt http.RoundTripper) *recorder.Recorder {
	t.Helper()

	r, err := recorder.NewAsMode(cassettePath, mode, rt)
	if err != nil {
		t.Fatalf("failed to create VCR recorder: %v", err)
	}

	// Match on method and URL only; request bodies carry timestamps.
	r.SetMatcher(func(req *http.Request, i cassette.Request) bool {
		return req.Method == i.Method && req.URL.String() == i.URL
	})

	return r
}

// Client returns an HTTP client whose transport is the recorder.
func Client(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}
