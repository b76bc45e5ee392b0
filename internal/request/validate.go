package request

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxSegments = 5

var (
	apiVersionRe = regexp.MustCompile(`(?i)^v[1-3]$`)

	// UUIDv4: 32 hex digits grouped 8-4-4-4-12, hyphens optional, version
	// nibble fixed to 4, variant nibble in {8,9,a,b}.
	uuidV4Re = regexp.MustCompile(`(?i)^[0-9a-f]{8}-?[0-9a-f]{4}-?4[0-9a-f]{3}-?[89ab][0-9a-f]{3}-?[0-9a-f]{12}$`)
)

// ErrTooManySegments rejects paths with more than five non-empty segments.
// The caller must answer with an empty response and stop processing.
var ErrTooManySegments = errors.New("path exceeds maximum segment count")

// SegmentError reports a path segment that failed every acceptance rule.
type SegmentError struct {
	Segment string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %q must be a valid UUID v4 for resource identifiers", e.Segment)
}

// ValidatePath checks the structural rules for a request path. Each segment
// must be an API version token (v1-v3), alphabetic-only, alphanumeric-only,
// or a loose UUIDv4. The first failing segment is named in the error.
func ValidatePath(fullPath string) error {
	var segments []string
	for _, s := range strings.Split(fullPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	if len(segments) > maxSegments {
		return ErrTooManySegments
	}

	for _, seg := range segments {
		if apiVersionRe.MatchString(seg) {
			continue
		}
		if isAlpha(seg) {
			continue
		}
		if isAlnum(seg) {
			continue
		}
		if uuidV4Re.MatchString(seg) {
			continue
		}
		return &SegmentError{Segment: seg}
	}

	return nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
