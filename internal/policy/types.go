package policy

import (
	"fmt"
	"regexp"

	"github.com/gzhole/netmon/internal/intent"
)

// RuleFile is the on-disk YAML shape of the security rule sets.
type RuleFile struct {
	Version            string   `yaml:"version"`
	Actions            []string `yaml:"actions"`
	RiskLevels         []string `yaml:"risk_levels"`
	SuspiciousPatterns []string `yaml:"suspicious_patterns"`
	ForbiddenPaths     []string `yaml:"forbidden_paths"`
}

// RuleSet is the compiled, read-only form of a RuleFile. It is built once at
// startup and shared by the validator and sanitizer.
type RuleSet struct {
	version         string
	actions         []intent.Action
	actionSet       map[intent.Action]struct{}
	riskSet         map[intent.RiskLevel]struct{}
	suspicious      []*regexp.Regexp
	forbidden       []string
	caseInsensitive bool
}

// Version returns the rule file version string.
func (r *RuleSet) Version() string { return r.version }

// Actions returns the whitelisted actions in vocabulary order.
func (r *RuleSet) Actions() []intent.Action {
	out := make([]intent.Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// AllowsAction reports whether a is whitelisted.
func (r *RuleSet) AllowsAction(a intent.Action) bool {
	_, ok := r.actionSet[a]
	return ok
}

// AllowsRisk reports whether level is whitelisted.
func (r *RuleSet) AllowsRisk(level intent.RiskLevel) bool {
	_, ok := r.riskSet[level]
	return ok
}

// MatchSuspicious returns the first denylist pattern matching s.
func (r *RuleSet) MatchSuspicious(s string) (string, bool) {
	for _, re := range r.suspicious {
		if re.MatchString(s) {
			return re.String(), true
		}
	}
	return "", false
}

// SuspiciousPatterns returns the denylist sources.
func (r *RuleSet) SuspiciousPatterns() []string {
	out := make([]string, len(r.suspicious))
	for i, re := range r.suspicious {
		out[i] = re.String()
	}
	return out
}

// ForbiddenPaths returns the expanded forbidden-path prefixes.
func (r *RuleSet) ForbiddenPaths() []string {
	out := make([]string, len(r.forbidden))
	copy(out, r.forbidden)
	return out
}

// Stage names the pipeline stage that rejected an intent.
type Stage string

const (
	StageValidation Stage = "validation"
	StageSanitize   Stage = "sanitize"
	StagePolicy     Stage = "policy"
)

// Rejection is returned when an intent fails a policy stage. Callers match it
// with errors.As.
type Rejection struct {
	Stage  Stage
	Reason string
}

func (r *Rejection) Error() string {
	return string(r.Stage) + ": " + r.Reason
}

func reject(stage Stage, format string, args ...any) *Rejection {
	return &Rejection{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}
