package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mirage/internal/auth"
	"mirage/internal/engine"
	"mirage/internal/login"
	"mirage/internal/request"
	"mirage/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler binds the resolution engine and the login service to HTTP.
type Handler struct {
	engine *engine.Engine
	login  *login.Service
	logger *slog.Logger
}

func NewHandler(e *engine.Engine, l *login.Service, logger *slog.Logger) *Handler {
	return &Handler{engine: e, login: l, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login captures credentials. Any parseable username/password pair is
// accepted into the users table; the token response is deliberately flaky.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || json.Unmarshal(body, &req) != nil || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid request"}, nil)
		return
	}

	token, err := h.login.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if errors.Is(err, login.ErrRejected) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": login.Detail}, nil)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"access_token": token}, nil)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := h.accept(w, r)
	if !ok {
		return
	}

	out, err := h.engine.Get(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.serve(w, r, req, out)
}

func (h *Handler) Mutate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.accept(w, r)
	if !ok {
		return
	}

	out, err := h.engine.Mutate(r.Context(), req, auth.ExtractToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.serve(w, r, req, out)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.accept(w, r)
	if !ok {
		return
	}

	out, err := h.engine.Delete(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.serve(w, r, req, out)
}

// serve writes the outcome and annotates the request log line with the
// terminal branch and the fingerprint it resolved under.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, req *request.InboundRequest, out *engine.Outcome) {
	AddLogField(r.Context(), "outcome", out.Kind.String())
	AddLogField(r.Context(), "fingerprint", req.Fingerprint())
	writeOutcome(w, out)
}

// accept snapshots the request and enforces path structure. Overlong paths
// vanish behind an empty response; a malformed segment is named so the
// endpoint still feels like a picky REST API.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request) (*request.InboundRequest, bool) {
	req, err := buildRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Invalid request"}, nil)
		return nil, false
	}

	if err := request.ValidatePath(req.FullPath); err != nil {
		var segErr *request.SegmentError
		switch {
		case errors.Is(err, request.ErrTooManySegments):
			w.WriteHeader(http.StatusNoContent)
		case errors.As(err, &segErr):
			detail := fmt.Sprintf("Segment '%s' must be a valid UUID v4 for resource identifiers.", segErr.Segment)
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": detail}, nil)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"}, nil)
		}
		return nil, false
	}

	return req, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	h.logger.Error("request failed",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "Internal Server Error"}, nil)
}

// buildRequest snapshots the transport request into an immutable value.
// Query order is preserved by walking the raw query string; the stdlib
// parser would shuffle it through a map.
func buildRequest(r *http.Request) (*request.InboundRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	var parsed request.Body
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		parsed = request.ParseBody(body)
	}

	return &request.InboundRequest{
		ClientIP:   clientIP(r),
		Method:     r.Method,
		FullPath:   strings.Trim(r.URL.Path, "/"),
		Query:      parseQueryOrdered(r.URL.RawQuery),
		Body:       parsed,
		Headers:    headers,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

func parseQueryOrdered(raw string) []request.Param {
	if raw == "" {
		return nil
	}
	var params []request.Param
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		params = append(params, request.Param{Key: k, Value: v})
	}
	return params
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeOutcome renders a terminal outcome: stored headers first, then the
// body framed by its shape. Object bodies go out as JSON, text containing
// an html tag as text/html, anything else as text/plain.
func writeOutcome(w http.ResponseWriter, out *engine.Outcome) {
	for k, v := range out.Headers {
		w.Header().Set(k, v)
	}

	if out.Status == http.StatusNoContent || out.Body.Kind == store.Null {
		w.WriteHeader(out.Status)
		return
	}

	switch out.Body.Kind {
	case store.Object:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(out.Status)
		_ = json.NewEncoder(w).Encode(out.Body.Object)
	default:
		text := out.Body.String()
		if strings.Contains(strings.ToLower(text), "<html") {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(out.Status)
		_, _ = io.WriteString(w, text)
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
