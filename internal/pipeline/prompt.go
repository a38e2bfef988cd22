package pipeline

import (
	"fmt"
	"strings"

	"github.com/gzhole/netmon/internal/intent"
)

type example struct {
	query string
	reply intent.Intent
}

var examples = []example{
	{"Show me CPU usage", intent.Intent{Action: intent.ActionMonitorCPU, Target: intent.None, Value: intent.None, RiskLevel: intent.RiskGreen}},
	{"List files in /tmp", intent.Intent{Action: intent.ActionListFiles, Target: "/tmp", Value: intent.None, RiskLevel: intent.RiskGreen}},
	{"Restart the nginx service", intent.Intent{Action: intent.ActionServiceOp, Target: "nginx", Value: "restart", RiskLevel: intent.RiskYellow}},
	{"Kill process 1234", intent.Intent{Action: intent.ActionKillProc, Target: "1234", Value: intent.None, RiskLevel: intent.RiskRed}},
}

// SystemPrompt builds the instruction sent with every query. It carries the
// live host context and the action vocabulary the validator will enforce.
func SystemPrompt(goos, cwd string, actions []intent.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	var b strings.Builder
	b.WriteString("You translate system administration requests into a single JSON intent. Reply with JSON only.\n\n")

	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Operating system: %s\n", goos)
	fmt.Fprintf(&b, "- Working directory: %s\n\n", cwd)

	b.WriteString("Rules:\n")
	b.WriteString("1. risk_level is GREEN for read-only requests, YELLOW for non-destructive changes, RED for destructive or critical ones.\n")
	b.WriteString("2. \"Go to X and list files\" is one MOVE_AND_LIST intent.\n")
	b.WriteString("3. Paths are bare: no surrounding quotes, no escaping backslashes.\n")
	b.WriteString("4. SERVICE_OP puts the service in target and one of start, stop, restart, status, enable, disable in value.\n")
	b.WriteString("5. PORT_SCAN may list ports in value, comma separated.\n")
	fmt.Fprintf(&b, "6. action must be one of: %s\n\n", strings.Join(names, ", "))

	b.WriteString("Format:\n")
	b.WriteString(`{"action": "ACTION", "target": "path, host, pid, service or none", "value": "argument or none", "risk_level": "GREEN|YELLOW|RED"}`)
	b.WriteString("\n\nExamples:\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "User: %q\nReply: %s\n", ex.query, render(ex.reply))
	}
	return b.String()
}

func render(in intent.Intent) string {
	return fmt.Sprintf(`{"action": %q, "target": %q, "value": %q, "risk_level": %q}`,
		in.Action, in.Target, in.Value, in.RiskLevel)
}
