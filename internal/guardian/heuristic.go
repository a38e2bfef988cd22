package guardian

import (
	"regexp"
	"strings"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/normalize"
)

// HeuristicProvider detects manipulation signals with pattern matching.
type HeuristicProvider struct {
	rules []heuristicRule
}

type heuristicRule struct {
	signal Signal
	match  func(req Request) bool
	raise  intent.RiskLevel
}

// NewHeuristicProvider creates a guardian with the built-in rules.
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{rules: buildRules()}
}

func (p *HeuristicProvider) Name() string { return "heuristic" }

// Analyze runs every rule and reports the most severe tier any of them asks for.
func (p *HeuristicProvider) Analyze(req Request) (Response, error) {
	var (
		resp  Response
		parts []string
	)
	for _, r := range p.rules {
		if !r.match(req) {
			continue
		}
		resp.Signals = append(resp.Signals, r.signal)
		parts = append(parts, r.signal.Description)
		if resp.MinimumRisk == "" {
			resp.MinimumRisk = r.raise
		} else {
			resp.MinimumRisk = resp.MinimumRisk.Escalate(r.raise)
		}
	}
	resp.Explanation = strings.Join(parts, "; ")
	return resp, nil
}

func buildRules() []heuristicRule {
	return []heuristicRule{
		{
			signal: Signal{
				ID:          "instruction_override",
				Category:    "prompt-injection",
				Severity:    "high",
				Description: "query contains instruction override language",
			},
			match: func(req Request) bool { return matchesAny(req.Query, instructionOverridePatterns) },
			raise: intent.RiskYellow,
		},
		{
			signal: Signal{
				ID:          "prompt_exfiltration",
				Category:    "prompt-injection",
				Severity:    "medium",
				Description: "query asks for the system prompt",
			},
			match: func(req Request) bool { return matchesAny(req.Query, promptExfilPatterns) },
			raise: intent.RiskYellow,
		},
		{
			signal: Signal{
				ID:          "disable_safeguards",
				Category:    "security-bypass",
				Severity:    "critical",
				Description: "query asks to skip confirmation, auditing or validation",
			},
			match: func(req Request) bool { return matchesAny(req.Query, disableSafeguardPatterns) },
			raise: intent.RiskRed,
		},
		{
			signal: Signal{
				ID:          "indirect_injection",
				Category:    "prompt-injection",
				Severity:    "critical",
				Description: "provider reply contains embedded role or instruction markers",
			},
			match: func(req Request) bool {
				return matchesAny(req.ProviderText, indirectInjectionPatterns) ||
					matchesAny(req.ProviderText, instructionOverridePatterns)
			},
			raise: intent.RiskRed,
		},
		{
			signal: Signal{
				ID:          "obfuscated_payload",
				Category:    "obfuscation",
				Severity:    "high",
				Description: "query or intent carries an encoded payload",
			},
			match: func(req Request) bool {
				return looksEncoded(req.Query) || looksEncoded(req.Intent.Target) || looksEncoded(req.Intent.Value)
			},
			raise: intent.RiskYellow,
		},
		{
			signal: Signal{
				ID:          "unrequested_mutation",
				Category:    "intent-mismatch",
				Severity:    "high",
				Description: "provider proposed a state change the query does not ask for",
			},
			match: matchesUnrequestedMutation,
			raise: intent.RiskRed,
		},
	}
}

var instructionOverridePatterns = compilePatterns([]string{
	`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|rules?)`,
	`(?i)disregard\s+(all\s+)?(previous|prior|your)\s+(previous\s+)?(instructions?|rules?|guidelines?)`,
	`(?i)forget\s+(all\s+)?(your|previous)\s+(instructions?|rules?)`,
	`(?i)you\s+are\s+now\s+(free|unrestricted|unfiltered)`,
	`(?i)new\s+instructions?:\s+`,
	`(?i)system\s*:\s*(you\s+are|ignore|forget)`,
})

var promptExfilPatterns = compilePatterns([]string{
	`(?i)(show|reveal|display|print|output)\s+(me\s+)?(your|the)\s+(system\s+)?prompt`,
	`(?i)repeat\s+(your\s+)?(system\s+)?(prompt|instructions?)`,
})

var disableSafeguardPatterns = compilePatterns([]string{
	`(?i)\b(without|skip|no|bypass|disable)\s+(any\s+)?(confirmation|confirm|approval|prompt(ing)?)`,
	`(?i)(disable|turn\s+off|bypass|skip|clear|delete|wipe)\s+(the\s+)?(audit|audit\s+log|logging|validation|netmon)`,
	`(?i)risk_level\s*[:=]\s*"?green`,
})

var indirectInjectionPatterns = compilePatterns([]string{
	`(?i)\[INST\]`,
	`(?i)<\|im_start\|>`,
	`(?i)BEGIN\s+HIDDEN\s+INSTRUCTIONS?`,
	`(?i)IMPORTANT:\s*(ignore|disregard|override)`,
})

var (
	base64RunPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
	hexEscapePattern = regexp.MustCompile(`(\\\\?x[0-9a-fA-F]{2}){4,}`)
)

// looksEncoded reports a hex escape chain, or a long base64 run that mixes
// letter cases and digits. Runs dense with '/' are paths, not payloads.
func looksEncoded(s string) bool {
	if hexEscapePattern.MatchString(s) {
		return true
	}
	for _, run := range base64RunPattern.FindAllString(s, -1) {
		if strings.Count(run, "/")*10 > len(run) {
			continue
		}
		if strings.ContainsAny(run, "0123456789") &&
			strings.ContainsAny(run, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") &&
			strings.ContainsAny(run, "abcdefghijklmnopqrstuvwxyz") {
			return true
		}
	}
	return false
}

// mutationVerbs are canonical query words that plausibly request a state
// change. Synonyms are folded by the normalizer first.
var mutationVerbs = map[string]bool{
	"kill": true, "stop": true, "start": true, "restart": true, "reload": true,
	"enable": true, "disable": true, "end": true, "terminate": true,
	"service": true, "process": true, "pid": true, "daemon": true,
}

func matchesUnrequestedMutation(req Request) bool {
	switch req.Intent.Action {
	case intent.ActionKillProc, intent.ActionServiceOp:
	default:
		return false
	}
	for _, w := range normalize.Tokens(normalize.Query(req.Query)) {
		if mutationVerbs[w] {
			return false
		}
	}
	return true
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
