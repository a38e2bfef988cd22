package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/pipeline"
)

var (
	resultStyle   = color.New(color.FgGreen)
	rejectedStyle = color.New(color.FgRed, color.Bold)
	errorStyle    = color.New(color.FgYellow, color.Bold)
	dimStyle      = color.New(color.Faint)
)

// printOutcome writes the single terminal message of a query, preceded by a
// one-line trace of what was proposed.
func printOutcome(w io.Writer, o pipeline.Outcome) {
	if o.Intent.Action != "" && o.Class != pipeline.ClassRejected {
		dimStyle.Fprintln(w, traceLine(o))
	}

	switch o.Class {
	case pipeline.ClassResult:
		resultStyle.Fprint(w, "> ")
		fmt.Fprintln(w, o.Output)
	case pipeline.ClassRejected:
		rejectedStyle.Fprintln(w, o.Summary())
	case pipeline.ClassError:
		errorStyle.Fprintln(w, o.Summary())
	default:
		fmt.Fprintln(w, o.Summary())
	}
}

func traceLine(o pipeline.Outcome) string {
	target := o.Intent.TargetOrNone()
	if o.Resolved != "" {
		target = o.Resolved
	}
	line := fmt.Sprintf("[%s] %s target=%s", o.Intent.RiskLevel, o.Intent.Action, target)
	if o.Intent.HasValue() {
		line += " value=" + o.Intent.Value
	}
	if o.Intent.Source != "" && o.Intent.Source != intent.SourceParsed {
		line += " (" + string(o.Intent.Source) + ")"
	}
	return line
}

// statusIcon marks a check line in status and selftest output.
func statusIcon(ok bool) string {
	if ok {
		return color.GreenString("✔")
	}
	return color.RedString("✘")
}
