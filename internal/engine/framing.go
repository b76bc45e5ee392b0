package engine

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// strippedHeaders are framing or identity headers a generated response must
// never carry. The real values come from the transport and the default set.
var strippedHeaders = map[string]struct{}{
	"content-length":    {},
	"transfer-encoding": {},
	"date":              {},
	"content-type":      {},
	"server":            {},
}

// defaultHeaders fabricates the baseline header set presented to clients,
// impersonating a plain nginx install with per-request trace identifiers.
func defaultHeaders() map[string]string {
	return map[string]string{
		"Server":          "nginx/1.22.1",
		"Date":            time.Now().UTC().Format(http.TimeFormat),
		"Cache-Control":   "no-cache",
		"Vary":            "Accept-Encoding",
		"X-Request-ID":    uuid.NewString(),
		"X-Trace-ID":      uuid.NewString(),
		"X-Response-Time": fmt.Sprintf("%dms", 20+time.Now().UnixNano()%180),
	}
}

// sanitizeHeaders drops stripped names case-insensitively and coerces the
// remaining values to strings.
func sanitizeHeaders(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if _, bad := strippedHeaders[strings.ToLower(k)]; bad {
			continue
		}
		switch s := v.(type) {
		case string:
			out[k] = strings.TrimSpace(s)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// frame merges sanitized stored or fabricated headers over the default set.
// Stored values win on name collision.
func frame(stored map[string]any) map[string]string {
	merged := defaultHeaders()
	for k, v := range sanitizeHeaders(stored) {
		merged[k] = v
	}
	return merged
}
