// Package extract turns untrusted completion-provider text into an
// intent-shaped result. Structured output is tried first; anything that is
// not a balanced, parseable JSON object falls back to keyword heuristics.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/gzhole/netmon/internal/intent"
)

// Result is the tagged outcome of extraction. Exactly one of Candidate or
// Intent is meaningful, selected by Source.
type Result struct {
	Source intent.Source

	// Candidate is the decoded JSON object when Source is SourceParsed. It
	// has not been validated.
	Candidate map[string]any

	// Intent is the synthesised intent for SourceHeuristic and SourceUnknown.
	Intent intent.Intent
}

// FirstObject returns the first syntactically balanced JSON object in s.
// Braces inside string literals are ignored and a backslash escapes the
// following character within a string.
func FirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Object locates and decodes the first JSON object in raw. It reports false
// when no balanced object exists or the candidate does not decode to an
// object.
func Object(raw string) (map[string]any, bool) {
	text, ok := FirstObject(raw)
	if !ok {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Resolve runs the two-tier extraction over raw provider output. normalized
// is the canonicalised operator query used by the heuristics. Resolve never
// fails: every input yields a Result.
func Resolve(raw, normalized string) Result {
	if obj, ok := Object(raw); ok {
		return Result{Source: intent.SourceParsed, Candidate: obj}
	}

	in := Heuristic(normalized, raw)
	return Result{Source: in.Source, Intent: in}
}

// ProviderFailure converts a provider error into the read-only UNKNOWN intent
// used whenever nothing was proposed.
func ProviderFailure(err error) intent.Intent {
	return intent.Unknown(intent.RiskGreen, "API Error: "+err.Error())
}

// IsErrorMarker reports whether raw provider text is an error report rather
// than a completion.
func IsErrorMarker(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "error") || strings.Contains(lower, "api error")
}
