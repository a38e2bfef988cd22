// Package guardian looks for prompt-injection and manipulation signals in the
// operator query and the provider's reply. It can only raise an intent's
// risk tier so the operator is asked to confirm; it never lowers one.
//
//	Provider (interface)
//	  └── HeuristicProvider  built-in regex rules
package guardian

import "github.com/gzhole/netmon/internal/intent"

// Signal is a single detection.
type Signal struct {
	ID       string
	Category string
	// Severity is "critical", "high", "medium" or "low".
	Severity    string
	Description string
}

// Request carries everything the guardian may inspect for one query.
type Request struct {
	Query        string
	ProviderText string
	Intent       intent.Intent
}

// Response is the guardian's verdict.
type Response struct {
	Signals []Signal
	// MinimumRisk is the tier the intent must be raised to, or "" when no
	// signal fired.
	MinimumRisk intent.RiskLevel
	Explanation string
}

// Provider is implemented by every guardian backend.
type Provider interface {
	Name() string
	Analyze(req Request) (Response, error)
}

// Apply raises in to the response's minimum risk and records the reason. It
// never downgrades.
func Apply(in intent.Intent, resp Response) intent.Intent {
	if resp.MinimumRisk == "" {
		return in
	}
	raised := in.RiskLevel.Escalate(resp.MinimumRisk)
	if raised == in.RiskLevel {
		return in
	}
	in.RiskLevel = raised
	note := "Escalated to " + string(raised) + ": " + resp.Explanation
	if in.Message == "" {
		in.Message = note
	} else {
		in.Message += "; " + note
	}
	return in
}
