package policy

import (
	"fmt"
	"os"

	"github.com/cedar-policy/cedar-go"

	"github.com/gzhole/netmon/internal/intent"
)

// DefaultActionPolicy permits every validated intent; the gate still applies.
const DefaultActionPolicy = `permit(principal, action, resource);`

// ActionPolicy is an operator-authored Cedar policy evaluated after
// sanitisation. It can only reject: a permit here still goes through the
// authorization gate.
//
// Requests are shaped as
//
//	principal: Operator::"<user>"
//	action:    Action::"<ACTION>"
//	resource:  Target::"<resolved target or none>"
//	context:   { risk: "<GREEN|YELLOW|RED>", value: "<value or none>", source: "<parsed|heuristic|unknown>" }
//
// A forbid policy may carry @reason("...") which is surfaced to the operator.
type ActionPolicy struct {
	set    *cedar.PolicySet
	source string
}

// LoadActionPolicy reads a Cedar policy file. A missing file yields the
// permit-all default.
func LoadActionPolicy(path string) (*ActionPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ParseActionPolicy("default", []byte(DefaultActionPolicy))
		}
		return nil, fmt.Errorf("failed to read action policy: %w", err)
	}
	return ParseActionPolicy(path, data)
}

// ParseActionPolicy compiles Cedar policy text.
func ParseActionPolicy(name string, text []byte) (*ActionPolicy, error) {
	ps, err := cedar.NewPolicySetFromBytes(name, text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action policy %s: %w", name, err)
	}
	return &ActionPolicy{set: ps, source: name}, nil
}

// Source names where the policy was loaded from.
func (p *ActionPolicy) Source() string { return p.source }

// Check evaluates the intent. target is the sanitised target when the action
// takes a path, otherwise the validated one.
func (p *ActionPolicy) Check(operator string, in intent.Intent, target string) error {
	if !intent.IsSet(target) {
		target = intent.None
	}
	req := cedar.Request{
		Principal: cedar.NewEntityUID("Operator", cedar.String(operator)),
		Action:    cedar.NewEntityUID("Action", cedar.String(string(in.Action))),
		Resource:  cedar.NewEntityUID("Target", cedar.String(target)),
		Context: cedar.NewRecord(cedar.RecordMap{
			"risk":   cedar.String(string(in.RiskLevel)),
			"value":  cedar.String(in.ValueOrNone()),
			"source": cedar.String(string(in.Source)),
		}),
	}

	decision, diag := cedar.Authorize(p.set, cedar.EntityMap{}, req)
	if decision == cedar.Allow {
		return nil
	}

	if len(diag.Errors) > 0 {
		return reject(StagePolicy, "Action policy error in %s: %s", diag.Errors[0].PolicyID, diag.Errors[0].Message)
	}
	for _, r := range diag.Reasons {
		if pol := p.set.Get(r.PolicyID); pol != nil {
			if reason, ok := pol.Annotations()["reason"]; ok {
				return reject(StagePolicy, "Denied by action policy %s: %s", r.PolicyID, string(reason))
			}
		}
		return reject(StagePolicy, "Denied by action policy %s", r.PolicyID)
	}
	return reject(StagePolicy, "No action policy permits %s", in.Action)
}
