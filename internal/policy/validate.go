package policy

import (
	"github.com/gzhole/netmon/internal/intent"
	unicheck "github.com/gzhole/netmon/internal/unicode"
)

// Validator checks decoded provider output against the rule sets.
type Validator struct {
	rules *RuleSet
}

// NewValidator binds a validator to an immutable rule set.
func NewValidator(rules *RuleSet) *Validator {
	return &Validator{rules: rules}
}

// Validate runs the checks in order and stops at the first failure:
//
//  1. action and risk_level are present
//  2. action is whitelisted
//  3. risk_level is whitelisted
//  4. target, if present, is a string
//  5. target, unless "none", matches no suspicious pattern
//  6. value, if present, is a string and passes the same argument checks
//
// Argument checks extend the regex denylist with Unicode smuggling and
// shell-structure detection. A failure is returned as a *Rejection; the
// returned intent is then the synthetic UNKNOWN/RED record.
func (v *Validator) Validate(candidate map[string]any) (intent.Intent, error) {
	in, rej := v.validate(candidate)
	if rej != nil {
		return intent.Rejected("Invalid AI response: " + rej.Reason), rej
	}
	return in, nil
}

func (v *Validator) validate(c map[string]any) (intent.Intent, *Rejection) {
	for _, field := range []string{"action", "risk_level"} {
		if _, ok := c[field]; !ok {
			return intent.Intent{}, reject(StageValidation, "Missing required field: %s", field)
		}
	}

	actionName, _ := c["action"].(string)
	action := intent.Action(actionName)
	if actionName == "" || !v.rules.AllowsAction(action) {
		return intent.Intent{}, reject(StageValidation, "Invalid action: %v (not in whitelist)", c["action"])
	}

	riskName, _ := c["risk_level"].(string)
	risk := intent.RiskLevel(riskName)
	if riskName == "" || !v.rules.AllowsRisk(risk) {
		return intent.Intent{}, reject(StageValidation, "Invalid risk level: %v", c["risk_level"])
	}

	target, rej := v.argument(c, "target")
	if rej != nil {
		return intent.Intent{}, rej
	}
	value, rej := v.argument(c, "value")
	if rej != nil {
		return intent.Intent{}, rej
	}

	in := intent.Intent{
		Action:    action,
		Target:    target,
		Value:     value,
		RiskLevel: risk,
		Source:    intent.SourceParsed,
	}
	if msg, ok := c["message"].(string); ok {
		in.Message = msg
	}
	return in, nil
}

// argument applies checks 4 to 6 to one optional string field. Absent and
// null fields, like empty strings, resolve to "none".
func (v *Validator) argument(c map[string]any, field string) (string, *Rejection) {
	raw, present := c[field]
	if !present || raw == nil {
		return intent.None, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", reject(StageValidation, "%s must be a string", capitalize(field))
	}
	if !intent.IsSet(s) {
		return intent.None, nil
	}

	if pattern, hit := v.rules.MatchSuspicious(s); hit {
		return "", reject(StageValidation, "Suspicious pattern detected in %s: %s", field, pattern)
	}
	if f, hit := unicheck.Inspect(s).Rejects(); hit {
		return "", reject(StageValidation, "Suspicious character detected in %s: %s", field, f)
	}
	if construct, hit := shellStructure(s); hit {
		return "", reject(StageValidation, "Suspicious shell construct detected in %s: %s", field, construct)
	}
	return s, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
