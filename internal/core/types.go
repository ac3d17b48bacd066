// Package core holds the review domain types and the pure logic of the
// pipeline: the structured-output contract given to the model, the response
// parser that enforces it, and the cross-chunk aggregator. Nothing in this
// package performs IO.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Severity ranks a finding. Higher is more severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuggestion
	SeverityWarning
	SeverityBlocking
)

func (s Severity) String() string {
	switch s {
	case SeverityBlocking:
		return "blocking"
	case SeverityWarning:
		return "warning"
	case SeveritySuggestion:
		return "suggestion"
	default:
		return "info"
	}
}

// ParseSeverity maps a model-provided severity label onto the fixed scale.
// Common aliases from other taxonomies (critical/high/medium/low) are
// accepted so a drifting model response still lands on a usable rank.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "blocking", "blocker", "critical":
		return SeverityBlocking, true
	case "warning", "high", "major":
		return SeverityWarning, true
	case "suggestion", "medium":
		return SeveritySuggestion, true
	case "info", "low", "nit", "minor":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// Finding is one issue identified by the model for a specific chunk, prior
// to cross-chunk deduplication. Findings are immutable once parsed.
type Finding struct {
	Path        string
	Line        int
	Severity    Severity
	Category    string
	Title       string
	Body        string
	Suggestion  string
	Fingerprint string
}

// ReviewComment is the final, published unit of feedback attached to a
// file/line, possibly merged from several findings.
type ReviewComment struct {
	Path     string
	Line     int
	Severity Severity
	Body     string
}

// ParseWarning records a degraded parse: malformed model output or a finding
// anchored to a line that does not exist in the reviewed chunk. Dropped is
// set only when an actual finding was discarded, so callers counting lost
// findings can skip the unparseable-response warning.
type ParseWarning struct {
	Chunk   int
	Reason  string
	Dropped bool
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("chunk %d: %s", w.Chunk, w.Reason)
}

var nonWord = regexp.MustCompile(`[^a-z0-9 ]+`)
var spaces = regexp.MustCompile(`\s+`)

// NormalizeBody canonicalizes finding text for fingerprinting and
// similarity comparison: lowercased, punctuation stripped, whitespace
// collapsed.
func NormalizeBody(body string) string {
	s := strings.ToLower(body)
	s = nonWord.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FingerprintOf derives the stable deduplication key for a finding from its
// location and normalized body.
func FingerprintOf(path string, line int, body string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, line, NormalizeBody(body))))
	return hex.EncodeToString(h[:])[:16]
}
