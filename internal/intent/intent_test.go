package intent

import "testing"

func TestAction_IsKnown(t *testing.T) {
	for _, a := range Actions() {
		if !a.IsKnown() {
			t.Errorf("expected %s to be known", a)
		}
	}
	for _, a := range []Action{"", "RM_RF", "monitor_cpu"} {
		if a.IsKnown() {
			t.Errorf("expected %q to be unknown", a)
		}
	}
}

func TestAction_TakesPath(t *testing.T) {
	tests := []struct {
		action   Action
		expected bool
	}{
		{ActionListFiles, true},
		{ActionMoveDir, true},
		{ActionMoveAndList, true},
		{ActionKillProc, false},
		{ActionPing, false},
	}
	for _, tt := range tests {
		if got := tt.action.TakesPath(); got != tt.expected {
			t.Errorf("%s: expected TakesPath=%v, got %v", tt.action, tt.expected, got)
		}
	}
}

func TestRiskLevel_EscalateNeverDowngrades(t *testing.T) {
	tests := []struct {
		from, to, expected RiskLevel
	}{
		{RiskGreen, RiskYellow, RiskYellow},
		{RiskYellow, RiskGreen, RiskYellow},
		{RiskRed, RiskYellow, RiskRed},
		{RiskGreen, RiskGreen, RiskGreen},
	}
	for _, tt := range tests {
		if got := tt.from.Escalate(tt.to); got != tt.expected {
			t.Errorf("%s.Escalate(%s): expected %s, got %s", tt.from, tt.to, tt.expected, got)
		}
	}
}

func TestIntent_HasTarget(t *testing.T) {
	tests := []struct {
		target   string
		expected bool
	}{
		{"", false},
		{"none", false},
		{"NONE", false},
		{"  ", false},
		{"/tmp", true},
		{"1234", true},
	}
	for _, tt := range tests {
		in := Intent{Target: tt.target}
		if got := in.HasTarget(); got != tt.expected {
			t.Errorf("target %q: expected %v, got %v", tt.target, tt.expected, got)
		}
	}
}

func TestRejected(t *testing.T) {
	in := Rejected("Invalid action: FOO (not in whitelist)")
	if in.Action != ActionUnknown || in.RiskLevel != RiskRed {
		t.Errorf("expected UNKNOWN/RED, got %s/%s", in.Action, in.RiskLevel)
	}
	if in.Message == "" {
		t.Error("expected rejection reason as message")
	}
}
