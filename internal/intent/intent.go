// Package intent defines the structured action proposal that the mediation
// pipeline derives from a natural-language query.
package intent

import (
	"sort"
	"strings"
)

// Action is one entry of the closed action vocabulary.
type Action string

const (
	ActionMonitorCPU       Action = "MONITOR_CPU"
	ActionMonitorMem       Action = "MONITOR_MEM"
	ActionMonitorDisk      Action = "MONITOR_DISK"
	ActionMonitorSummary   Action = "MONITOR_SUMMARY"
	ActionMonitorDashboard Action = "MONITOR_DASHBOARD"
	ActionListFiles        Action = "LIST_FILES"
	ActionMoveDir          Action = "MOVE_DIR"
	ActionMoveAndList      Action = "MOVE_AND_LIST"
	ActionServiceOp        Action = "SERVICE_OP"
	ActionKillProc         Action = "KILL_PROC"
	ActionPortScan         Action = "PORT_SCAN"
	ActionPing             Action = "PING"
	ActionBandwidth        Action = "BANDWIDTH"
	ActionConnections      Action = "CONNECTIONS"
	ActionUnknown          Action = "UNKNOWN"
)

var allActions = []Action{
	ActionMonitorCPU,
	ActionMonitorMem,
	ActionMonitorDisk,
	ActionMonitorSummary,
	ActionMonitorDashboard,
	ActionListFiles,
	ActionMoveDir,
	ActionMoveAndList,
	ActionServiceOp,
	ActionKillProc,
	ActionPortScan,
	ActionPing,
	ActionBandwidth,
	ActionConnections,
	ActionUnknown,
}

// Actions returns the closed action vocabulary in declaration order.
func Actions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// IsKnown reports whether a is part of the closed vocabulary.
func (a Action) IsKnown() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

// TakesPath reports whether the action's target is a filesystem path.
func (a Action) TakesPath() bool {
	switch a {
	case ActionListFiles, ActionMoveDir, ActionMoveAndList:
		return true
	}
	return false
}

// RiskLevel classifies an intent's potential for harm.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"  // read-only
	RiskYellow RiskLevel = "YELLOW" // non-destructive mutation
	RiskRed    RiskLevel = "RED"    // destructive or critical
)

// RiskLevels returns the closed risk vocabulary, least to most severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskGreen, RiskYellow, RiskRed}
}

// IsKnown reports whether r is GREEN, YELLOW or RED.
func (r RiskLevel) IsKnown() bool {
	return r == RiskGreen || r == RiskYellow || r == RiskRed
}

// Severity orders risk levels; unknown levels sort above RED so they fail closed.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskGreen:
		return 0
	case RiskYellow:
		return 1
	case RiskRed:
		return 2
	default:
		return 3
	}
}

// Escalate returns the more severe of r and other. It never downgrades.
func (r RiskLevel) Escalate(other RiskLevel) RiskLevel {
	if other.Severity() > r.Severity() {
		return other
	}
	return r
}

// Source tags where an Intent came from. Provider output is never trusted to
// declare this itself.
type Source string

const (
	SourceParsed    Source = "parsed"
	SourceHeuristic Source = "heuristic"
	SourceUnknown   Source = "unknown"
)

// None is the sentinel used by the provider for an absent target or value.
const None = "none"

// Intent is the transient action proposal produced once per query.
type Intent struct {
	Action    Action    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Value     string    `json:"value,omitempty"`
	RiskLevel RiskLevel `json:"risk_level"`
	Message   string    `json:"message,omitempty"`
	Raw       string    `json:"raw,omitempty"`
	Source    Source    `json:"-"`
}

// Unknown builds an UNKNOWN intent carrying a diagnostic message.
func Unknown(risk RiskLevel, message string) Intent {
	return Intent{
		Action:    ActionUnknown,
		Target:    None,
		Value:     None,
		RiskLevel: risk,
		Message:   message,
		Source:    SourceUnknown,
	}
}

// Rejected is the synthetic UNKNOWN/RED record that replaces an intent which
// failed validation.
func Rejected(reason string) Intent {
	return Unknown(RiskRed, reason)
}

// HasTarget reports whether the intent carries a real target.
func (i Intent) HasTarget() bool {
	return IsSet(i.Target)
}

// HasValue reports whether the intent carries a real value.
func (i Intent) HasValue() bool {
	return IsSet(i.Value)
}

// TargetOrNone returns the target, or the "none" sentinel.
func (i Intent) TargetOrNone() string {
	if i.HasTarget() {
		return i.Target
	}
	return None
}

// ValueOrNone returns the value, or the "none" sentinel.
func (i Intent) ValueOrNone() string {
	if i.HasValue() {
		return i.Value
	}
	return None
}

// IsSet reports whether s is neither empty nor the "none" sentinel.
func IsSet(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, None)
}

// ActionNames returns the vocabulary as sorted strings, for prompts and errors.
func ActionNames(actions []Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	sort.Strings(names)
	return names
}
