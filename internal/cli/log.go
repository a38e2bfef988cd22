package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gzhole/netmon/internal/logger"
)

var (
	logFilterStatus string
	logFilterAction string
	logLast         int
	logSummary      bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the netmon audit log with filtering and summary options.

Examples:
  netmon log                        # Show all entries
  netmon log --last 20              # Show last 20 entries
  netmon log --status REJECTED      # Show only rejected requests
  netmon log --action KILL_PROC     # Show only process kills
  netmon log --summary              # Show summary stats`,
	Args: cobra.NoArgs,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterStatus, "status", "", "Filter by status (AUTHORIZED, REJECTED)")
	logCmd.Flags().StringVar(&logFilterAction, "action", "", "Filter by action (e.g. SERVICE_OP)")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	records, err := logger.ReadEntries(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	if logSummary {
		printSummary(out, records)
		return nil
	}

	filtered := filterRecords(records, logFilterStatus, logFilterAction)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}
	printRecords(out, filtered)
	return nil
}

func filterRecords(records []logger.Record, status, action string) []logger.Record {
	if status == "" && action == "" {
		return records
	}

	var filtered []logger.Record
	for _, r := range records {
		if status != "" && !strings.EqualFold(string(r.Status), status) {
			continue
		}
		if action != "" && !strings.EqualFold(r.Action, action) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printRecords(w io.Writer, records []logger.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%s %s %s\n", recordIcon(r.Status), formatTime(r.Time), r.Query)
		fmt.Fprintf(w, "     %s [%s] target=%s", r.Action, r.Risk, r.Target)
		if r.Value != "" {
			fmt.Fprintf(w, " value=%s", r.Value)
		}
		fmt.Fprintln(w)
		if r.Reason != "" {
			fmt.Fprintf(w, "     Reason: %s\n", r.Reason)
		}
		if r.ID != "" {
			fmt.Fprintf(w, "     ID: %s\n", r.ID)
		}
		fmt.Fprintln(w)
	}
}

func printSummary(w io.Writer, records []logger.Record) {
	statuses := map[logger.Status]int{}
	actions := map[string]int{}
	risks := map[string]int{}
	for _, r := range records {
		statuses[r.Status]++
		actions[r.Action]++
		risks[r.Risk]++
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintln(w, "  netmon Audit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  Total queries:   %d\n", len(records))
	fmt.Fprintf(w, "  AUTHORIZED:      %d\n", statuses[logger.StatusAuthorized])
	fmt.Fprintf(w, "  REJECTED:        %d\n", statuses[logger.StatusRejected])
	fmt.Fprintf(w, "  GREEN/YELLOW/RED: %d/%d/%d\n", risks["GREEN"], risks["YELLOW"], risks["RED"])
	fmt.Fprintln(w, "═══════════════════════════════════════════")
	fmt.Fprintf(w, "  First query:     %s\n", formatTime(records[0].Time))
	fmt.Fprintf(w, "  Last query:      %s\n", formatTime(records[len(records)-1].Time))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Actions:")
	for _, name := range sortedByCount(actions) {
		fmt.Fprintf(w, "    %-20s %d\n", name, actions[name])
	}

	var rejected []logger.Record
	for _, r := range records {
		if r.Status == logger.StatusRejected {
			rejected = append(rejected, r)
		}
	}
	if len(rejected) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Recent rejections:")
		if len(rejected) > 10 {
			rejected = rejected[len(rejected)-10:]
		}
		for _, r := range rejected {
			line := fmt.Sprintf("    %s %s", formatTime(r.Time), r.Query)
			if r.Reason != "" {
				line += " (" + r.Reason + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
}

func sortedByCount(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func recordIcon(s logger.Status) string {
	switch s {
	case logger.StatusAuthorized:
		return color.GreenString("✔")
	case logger.StatusRejected:
		return color.RedString("✘")
	default:
		return "?"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
