// Package catalog holds the startup-loaded attack-signature catalog and the
// substring matcher that selects a behavioral template for a request.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reserved catalog keys that never participate in scoring.
const (
	keyDynamicFields = "dynamic_fields"
	keyEmulatedFiles = "emulated_files"
	keyFallback      = "fallback"
)

// Signature maps a set of patterns to the prompt template that biases
// fabricated content toward a vulnerability class.
type Signature struct {
	Key      string
	Patterns []string `json:"patterns"`
	Template string   `json:"template"`
}

// Catalog is the immutable signature catalog plus its two side-tables.
// Entries preserve file order so scoring ties resolve deterministically.
type Catalog struct {
	Entries       []Signature
	DynamicFields map[string]any
	EmulatedFiles map[string]string
}

// Load reads the catalog from a JSON file. A missing file yields a nil
// catalog, which disables attack matching entirely.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a catalog document, preserving top-level key order. The
// stdlib decoder is driven token-by-token because encoding/json maps do not
// retain ordering and tie-breaking depends on it.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parse catalog: expected object, got %v", tok)
	}

	c := &Catalog{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		key := tok.(string)

		switch key {
		case keyDynamicFields:
			if err := dec.Decode(&c.DynamicFields); err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
		case keyEmulatedFiles:
			var ef struct {
				Files map[string]string `json:"files"`
			}
			if err := dec.Decode(&ef); err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
			c.EmulatedFiles = ef.Files
		case keyFallback:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
		default:
			var sig Signature
			if err := dec.Decode(&sig); err != nil {
				return nil, fmt.Errorf("parse entry %s: %w", key, err)
			}
			// Entries without patterns or a template cannot score.
			if len(sig.Patterns) == 0 || sig.Template == "" {
				continue
			}
			sig.Key = key
			c.Entries = append(c.Entries, sig)
		}
	}

	return c, nil
}

// Match scores the request haystack against every entry and returns the
// strictly-highest scoring signature, or nil when nothing scores above
// zero. Ties resolve to the earliest entry in catalog order.
func (c *Catalog) Match(method, path, query, body string) *Signature {
	if c == nil {
		return nil
	}

	haystack := strings.ToLower(strings.Join([]string{method, path, query, body}, " "))

	var best *Signature
	bestScore := 0
	for i := range c.Entries {
		entry := &c.Entries[i]
		score := 0
		for _, p := range entry.Patterns {
			if strings.Contains(haystack, strings.ToLower(p)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	return best
}
