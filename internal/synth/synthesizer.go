// Package synth fabricates responses for unseen endpoints: it composes a
// generation prompt from the request and the attack catalog, invokes the
// generative collaborator, and parses the result into a structured
// response.
package synth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"mirage/internal/catalog"
	"mirage/internal/request"
	"mirage/internal/store"
)

// Fabrication is a parsed model response ready for persistence and replay.
type Fabrication struct {
	Body    store.Value
	Status  int
	Headers map[string]any
}

// Synthesizer owns prompt composition and model-output parsing.
type Synthesizer struct {
	chat    ChatClient
	catalog *catalog.Catalog
	prompts Prompts
	codec   tokenizer.Codec
	budget  int
	logger  *slog.Logger
}

// New builds a Synthesizer. budget caps the user prompt in tokens; zero
// disables clamping.
func New(chat ChatClient, cat *catalog.Catalog, prompts Prompts, budget int, logger *slog.Logger) *Synthesizer {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		logger.Warn("tokenizer unavailable, prompt budget disabled", slog.String("error", err.Error()))
		codec = nil
	}
	return &Synthesizer{
		chat:    chat,
		catalog: cat,
		prompts: prompts,
		codec:   codec,
		budget:  budget,
		logger:  logger,
	}
}

// Fabricate produces a response for a never-before-seen logical endpoint.
// Model errors propagate; unparseable output degrades to plain text.
func (s *Synthesizer) Fabricate(ctx context.Context, req *request.InboundRequest) (*Fabrication, error) {
	prompt := buildPrompt(s.prompts, s.catalog, req)
	prompt = s.clamp(prompt)

	raw, err := s.chat.Complete(ctx, s.prompts.System, prompt)
	if err != nil {
		return nil, err
	}

	return Parse(raw), nil
}

// clamp truncates the prompt to the configured token budget.
func (s *Synthesizer) clamp(prompt string) string {
	if s.codec == nil || s.budget <= 0 {
		return prompt
	}

	ids, _, err := s.codec.Encode(prompt)
	if err != nil || len(ids) <= s.budget {
		return prompt
	}

	truncated, err := s.codec.Decode(ids[:s.budget])
	if err != nil {
		return prompt
	}
	s.logger.Debug("prompt clamped to token budget",
		slog.Int("tokens", len(ids)), slog.Int("budget", s.budget))
	return truncated
}

// Parse turns raw model text into a Fabrication. The expected shape is a
// JSON document {body, status_code, headers}, possibly wrapped in code
// fencing. Anything that still fails to parse becomes a plain-text 200.
func Parse(raw string) *Fabrication {
	txt := stripFence(strings.TrimSpace(raw))

	var doc struct {
		Body       json.RawMessage `json:"body"`
		StatusCode int             `json:"status_code"`
		Headers    map[string]any  `json:"headers"`
	}
	if err := json.Unmarshal([]byte(txt), &doc); err != nil {
		return &Fabrication{
			Body:    store.TextValue(flatten(txt)),
			Status:  200,
			Headers: map[string]any{},
		}
	}

	f := &Fabrication{Status: doc.StatusCode, Headers: map[string]any{}}
	if f.Status == 0 {
		f.Status = 200
	}

	for k, v := range doc.Headers {
		if s, ok := v.(string); ok {
			f.Headers[k] = strings.TrimSpace(s)
		} else {
			f.Headers[k] = v
		}
	}

	f.Body = parseBodyField(doc.Body)
	return f
}

func parseBodyField(raw json.RawMessage) store.Value {
	if len(raw) == 0 {
		return store.Value{}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return store.ObjectValue(obj)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// The model sometimes nests a fenced document inside the body
		// string; unwrap and flatten it.
		return store.TextValue(flatten(stripFence(strings.TrimSpace(s))))
	}

	return store.TextValue(flatten(string(raw)))
}

// stripFence removes a leading/trailing markdown code fence.
func stripFence(s string) string {
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl != -1 {
			s = strings.TrimLeft(s[nl+1:], " \t")
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimRight(s[:len(s)-3], " \t\r\n")
	}
	return strings.TrimSpace(s)
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
