package approval

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// TerminalConfirmer asks on a terminal. It reads from the same line source
// as the interactive shell so typed-ahead input is not lost.
type TerminalConfirmer struct {
	in          *Lines
	out         io.Writer
	interactive func() bool
}

// NewTerminalConfirmer prompts on out and reads answers from in. When stdin
// is not a terminal every request is denied without reading.
func NewTerminalConfirmer(in *Lines, out io.Writer) *TerminalConfirmer {
	return &TerminalConfirmer{in: in, out: out, interactive: IsInteractive}
}

var riskColors = map[string]lipgloss.Color{
	"YELLOW": lipgloss.Color("214"),
	"RED":    lipgloss.Color("196"),
}

func banner(p Prompt) string {
	color, ok := riskColors[p.Risk]
	if !ok {
		color = riskColors["RED"]
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(color).
		Render(fmt.Sprintf("SECURITY ALERT: %s RISK ACTION", p.Risk))

	lines := []string{
		title,
		"",
		"Action: " + p.Action,
		"Target: " + p.Target,
	}
	if p.Value != "" && p.Value != "none" {
		lines = append(lines, "Value:  "+p.Value)
	}
	if p.Message != "" {
		lines = append(lines, "Note:   "+p.Message)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// Confirm shows the banner and reads a single answer. y, yes, a and approve
// authorize; anything else, including EOF, denies.
func (c *TerminalConfirmer) Confirm(ctx context.Context, p Prompt) (Result, error) {
	if !c.interactive() {
		return Result{Approved: false, UserAction: "auto_deny_non_interactive"}, nil
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, banner(p))
	fmt.Fprint(c.out, "Do you authorize this system change? [y/N]: ")

	answer, err := c.in.ReadLine(ctx)
	if ctx.Err() != nil {
		fmt.Fprintln(c.out)
		return Result{Approved: false, UserAction: "cancelled"}, ctx.Err()
	}
	if err != nil && answer == "" {
		return Result{Approved: false, UserAction: "error_reading_input"}, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "a", "approve":
		return Result{Approved: true, UserAction: "approve_once"}, nil
	default:
		return Result{Approved: false, UserAction: "deny"}, nil
	}
}
