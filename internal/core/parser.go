package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Anchors answers whether a (path, line) pair is addressable within the
// reviewed unit. The parser drops findings that point outside it.
type Anchors interface {
	HasLine(path string, line int) bool
}

var markdownHeaderPattern = regexp.MustCompile(
	`(?i)^\s*(?:[-*]\s*)?(?:File:\s*)?([^\s]+?\.\w+)\s*(?:\(line\s*(\d+)\)|:(\d+))\s*(?:\[(\w+)\])?\s*:?\s*(.*)\s*$`,
)

// ParseFindings turns raw model output into structured findings. It never
// fails: unparseable input yields zero findings and exactly one warning, and
// findings anchored to lines that do not exist in the chunk are dropped with
// a warning each. chunkIdx is only used to label warnings.
func ParseFindings(text string, chunkIdx int, anchors Anchors) ([]Finding, []ParseWarning) {
	items, ok := decodeJSONFindings(text)
	if !ok {
		items = decodeMarkdownFindings(text)
		if len(items) == 0 {
			return nil, []ParseWarning{{Chunk: chunkIdx, Reason: "unparseable model response"}}
		}
	}
	if len(items) == 0 {
		// Well-formed empty report: {"findings": []}.
		return nil, nil
	}

	var findings []Finding
	var warnings []ParseWarning
	for _, it := range items {
		if it.Path == "" || strings.TrimSpace(it.Body) == "" && strings.TrimSpace(it.Title) == "" {
			warnings = append(warnings, ParseWarning{
				Chunk:   chunkIdx,
				Reason:  "finding missing file or text, dropped",
				Dropped: true,
			})
			continue
		}
		if anchors != nil && !anchors.HasLine(it.Path, it.Line) {
			warnings = append(warnings, ParseWarning{
				Chunk:   chunkIdx,
				Reason:  fmt.Sprintf("finding anchored to nonexistent line %s:%d, dropped", it.Path, it.Line),
				Dropped: true,
			})
			continue
		}
		body := it.Body
		if body == "" {
			body = it.Title
		}
		it.Fingerprint = FingerprintOf(it.Path, it.Line, body)
		it.Body = body
		findings = append(findings, it)
	}
	return findings, warnings
}

type rawFinding struct {
	File        string          `json:"file"`
	Path        string          `json:"path"`
	Filename    string          `json:"filename"`
	Line        json.RawMessage `json:"line"`
	Severity    string          `json:"severity"`
	Category    string          `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Message     string          `json:"message"`
	Suggestion  string          `json:"suggestion"`
}

func decodeJSONFindings(text string) ([]Finding, bool) {
	payload := extractJSONPayload(text)
	if payload == "" {
		return nil, false
	}

	var raws []rawFinding

	var obj struct {
		Findings []rawFinding `json:"findings"`
		Comments []rawFinding `json:"comments"`
		Issues   []rawFinding `json:"issues"`
	}
	if err := json.Unmarshal([]byte(payload), &obj); err == nil {
		switch {
		case obj.Findings != nil:
			raws = obj.Findings
		case obj.Comments != nil:
			raws = obj.Comments
		case obj.Issues != nil:
			raws = obj.Issues
		default:
			return nil, false
		}
	} else if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, false
	}

	out := make([]Finding, 0, len(raws))
	for _, r := range raws {
		f := Finding{
			Path:       firstNonEmpty(r.File, r.Path, r.Filename),
			Line:       decodeLine(r.Line),
			Category:   strings.ToLower(strings.TrimSpace(r.Category)),
			Title:      strings.TrimSpace(r.Title),
			Body:       strings.TrimSpace(firstNonEmpty(r.Description, r.Message)),
			Suggestion: trimBlankEdges(r.Suggestion),
		}
		f.Severity, _ = ParseSeverity(r.Severity)
		out = append(out, f)
	}
	return out, true
}

// decodeMarkdownFindings is the fallback grammar for models that ignore the
// JSON instructions and emit "**File: x.go** (line N) [severity]: text".
func decodeMarkdownFindings(text string) []Finding {
	var out []Finding
	for _, line := range strings.Split(text, "\n") {
		normalized := strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		m := markdownHeaderPattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		lineNo := 0
		if m[2] != "" {
			lineNo, _ = strconv.Atoi(m[2])
		} else if m[3] != "" {
			lineNo, _ = strconv.Atoi(m[3])
		}
		sev, _ := ParseSeverity(m[4])
		out = append(out, Finding{
			Path:     strings.TrimSpace(m[1]),
			Line:     lineNo,
			Severity: sev,
			Body:     strings.TrimSpace(m[5]),
		})
	}
	return out
}

func extractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 3 {
			last := len(lines) - 1
			if strings.TrimSpace(lines[last]) == "```" {
				trimmed = strings.TrimSpace(strings.Join(lines[1:last], "\n"))
			}
		}
	}

	switch {
	case strings.HasPrefix(trimmed, "{"):
		if end := strings.LastIndex(trimmed, "}"); end > 0 {
			return trimmed[:end+1]
		}
	case strings.HasPrefix(trimmed, "["):
		if end := strings.LastIndex(trimmed, "]"); end > 0 {
			return trimmed[:end+1]
		}
	default:
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start >= 0 && end > start {
			return trimmed[start : end+1]
		}
	}
	return ""
}

func decodeLine(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
		return n
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func trimBlankEdges(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
