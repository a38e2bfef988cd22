package extract

import (
	"regexp"
	"strings"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/normalize"
)

// NoJSONMessage is attached to the last-resort UNKNOWN intent.
const NoJSONMessage = "No JSON found in AI response."

var (
	memWords  = []string{"ram", "memory", "mem"}
	cpuWords  = []string{"cpu"}
	diskWords = []string{"disk", "storage"}
	listWords = []string{"list", "ls", "dir", "files"}

	// pathAfterPreposition captures a best-effort path following "in" or "at".
	pathAfterPreposition = regexp.MustCompile(`(?i)\b(?:in|at)\s+([\w./\\:~-]+)`)
)

// Heuristic derives an intent from the normalized query when the provider
// returned nothing structured. raw is consulted only for error markers and
// is attached verbatim to the last-resort result.
func Heuristic(normalized, raw string) intent.Intent {
	if IsErrorMarker(raw) {
		return intent.Unknown(intent.RiskGreen, strings.TrimSpace(raw))
	}

	words := wordSet(normalized)
	mem := words.any(memWords)
	cpu := words.any(cpuWords)
	disk := words.any(diskWords)

	metrics := 0
	for _, hit := range []bool{mem, cpu, disk} {
		if hit {
			metrics++
		}
	}

	switch {
	case metrics >= 2:
		return guessed(intent.ActionMonitorSummary, intent.None)
	case words.has("dashboard"):
		return guessed(intent.ActionMonitorDashboard, intent.None)
	case mem:
		return guessed(intent.ActionMonitorMem, intent.None)
	case cpu:
		return guessed(intent.ActionMonitorCPU, intent.None)
	case disk:
		return guessed(intent.ActionMonitorDisk, intent.None)
	case words.any(listWords):
		target := intent.None
		if m := pathAfterPreposition.FindStringSubmatch(normalized); m != nil {
			target = m[1]
		}
		return guessed(intent.ActionListFiles, target)
	}

	in := intent.Unknown(intent.RiskGreen, NoJSONMessage)
	in.Raw = raw
	return in
}

func guessed(action intent.Action, target string) intent.Intent {
	return intent.Intent{
		Action:    action,
		Target:    target,
		Value:     intent.None,
		RiskLevel: intent.RiskGreen,
		Source:    intent.SourceHeuristic,
	}
}

type set map[string]struct{}

func wordSet(text string) set {
	s := make(set)
	for _, w := range normalize.Tokens(strings.ToLower(text)) {
		s[w] = struct{}{}
	}
	return s
}

func (s set) has(w string) bool {
	_, ok := s[w]
	return ok
}

func (s set) any(words []string) bool {
	for _, w := range words {
		if s.has(w) {
			return true
		}
	}
	return false
}
