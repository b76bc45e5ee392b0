// Package request derives the identity of an inbound HTTP request: its
// fingerprint, semantic key, and canonical signature, plus structural
// validation of the requested path.
package request

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// BodyKind tags the decoded shape of a request body.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyObject
	BodyText
	BodyBinary
)

// Body is the tagged variant for a request body. Exactly one representation
// is populated, selected by best-effort decode: JSON object, then UTF-8
// text, then base64 blob with its original size.
type Body struct {
	Kind   BodyKind
	Object map[string]any
	Text   string
	Base64 string
	Size   int
}

// ParseBody decodes raw bytes into a Body variant.
func ParseBody(raw []byte) Body {
	if len(raw) == 0 {
		return Body{Kind: BodyNone}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return Body{Kind: BodyObject, Object: obj}
	}

	if utf8.Valid(raw) {
		return Body{Kind: BodyText, Text: string(raw)}
	}

	return Body{
		Kind:   BodyBinary,
		Base64: base64.StdEncoding.EncodeToString(raw),
		Size:   len(raw),
	}
}

// JSON renders the body as a JSON value for hashing and embedding. Text and
// binary bodies are wrapped in single-key objects so every shape serializes
// to an object or null.
func (b Body) JSON() string {
	m := b.AsMap()
	if m == nil {
		return "null"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "null"
	}
	return string(data)
}

// AsMap exposes the body as a flat map for merge-key checking. Text and
// binary bodies surface under reserved keys, matching how they were
// captured at the transport.
func (b Body) AsMap() map[string]any {
	switch b.Kind {
	case BodyObject:
		return b.Object
	case BodyText:
		return map[string]any{"_text": b.Text}
	case BodyBinary:
		return map[string]any{"_binary_base64": b.Base64, "_size": b.Size}
	default:
		return nil
	}
}

// Param is a single query parameter. Order of arrival is preserved.
type Param struct {
	Key   string
	Value string
}

// InboundRequest is an immutable snapshot of one HTTP request. Construct it
// once at the transport boundary and treat it as read-only afterwards.
type InboundRequest struct {
	ClientIP   string
	Method     string
	FullPath   string
	Query      []Param
	Body       Body
	Headers    map[string]string
	ReceivedAt time.Time
}

// QueryJSON renders the query parameters as a JSON object in arrival order.
func (r *InboundRequest) QueryJSON() string {
	if len(r.Query) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, p := range r.Query {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, _ := json.Marshal(p.Key)
		v, _ := json.Marshal(p.Value)
		sb.Write(k)
		sb.WriteByte(':')
		sb.Write(v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Fingerprint is the sha256 hash of method, path, query, and body. It keys
// the concurrency gate: two byte-identical requests share a fingerprint.
func (r *InboundRequest) Fingerprint() string {
	raw := fmt.Sprintf("%s:%s:%s:%s", r.Method, r.FullPath, r.QueryJSON(), r.Body.JSON())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SemanticKey is the textual summary embedded into vector space for
// similarity search.
func (r *InboundRequest) SemanticKey() string {
	return fmt.Sprintf("%s %s %s %s", r.Method, r.FullPath, r.QueryJSON(), r.Body.JSON())
}

// Canonical builds the query-order-independent secondary identity:
// verb and path, with query pairs sorted by key and joined with '&'.
func (r *InboundRequest) Canonical(verb string) string {
	if len(r.Query) == 0 {
		return fmt.Sprintf("%s:%s", verb, r.FullPath)
	}

	pairs := make([]string, len(r.Query))
	sorted := make([]Param, len(r.Query))
	copy(sorted, r.Query)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for i, p := range sorted {
		pairs[i] = p.Key + "=" + p.Value
	}

	return fmt.Sprintf("%s:%s?%s", verb, r.FullPath, strings.Join(pairs, "&"))
}
