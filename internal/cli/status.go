package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/netmon/internal/config"
	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/policy"
	"github.com/gzhole/netmon/internal/provider"
	"github.com/gzhole/netmon/internal/redact"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show netmon configuration and health",
	Long: `Show where netmon reads its configuration, which provider it will call,
which security rules and packs are active, and where the audit log lives.`,
	Args: cobra.NoArgs,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	printStatus(cmd.OutOrStdout(), cfg)
	return nil
}

func printStatus(w io.Writer, c *config.Config) {
	fmt.Fprintln(w, "netmon status")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "─── Binary ────────────────────────────────────────────")
	if exe, err := os.Executable(); err == nil {
		fmt.Fprintf(w, "  %s netmon %s (%s)\n", statusIcon(true), Version, exe)
	} else {
		fmt.Fprintf(w, "  %s netmon %s\n", statusIcon(true), Version)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "─── Configuration ─────────────────────────────────────")
	fmt.Fprintf(w, "  Config dir:  %s\n", c.ConfigDir)
	if c.ConfigFile != "" {
		fmt.Fprintf(w, "  Config file: %s\n", c.ConfigFile)
	} else {
		fmt.Fprintln(w, "  Config file: none (built-in defaults and environment)")
	}
	fmt.Fprintf(w, "  Operator:    %s\n", c.Operator)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "─── Provider ──────────────────────────────────────────")
	settings := c.ProviderSettings()
	fmt.Fprintf(w, "  Type:     %s\n", settings.Type)
	fmt.Fprintf(w, "  Model:    %s\n", orDefault(settings.Model, "(backend default)"))
	if settings.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL: %s\n", settings.BaseURL)
	}
	keyNeeded := settings.Type != provider.TypeOllama && settings.Type != provider.TypeStatic
	fmt.Fprintf(w, "  %s API key: %s\n", statusIcon(settings.APIKey != "" || !keyNeeded), redact.Key(settings.APIKey))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "─── Security Rules ────────────────────────────────────")
	checkFile(w, "Rules file", c.RulesPath)
	rules, infos, err := loadRules(c)
	if err != nil {
		fmt.Fprintf(w, "  %s Rules invalid: %v\n", statusIcon(false), err)
	} else {
		fmt.Fprintf(w, "  %s Rules v%s: %d actions, %d patterns, %d forbidden paths\n",
			statusIcon(true), rules.Version(), len(rules.Actions()), len(rules.SuspiciousPatterns()), len(rules.ForbiddenPaths()))
		fmt.Fprintf(w, "     Actions: %v\n", intent.ActionNames(rules.Actions()))
	}
	enabled, broken := 0, 0
	for _, info := range infos {
		if info.Err != nil {
			broken++
		} else if info.Enabled {
			enabled++
		}
	}
	if len(infos) == 0 {
		fmt.Fprintf(w, "  ⬚  No rule packs installed (%s)\n", c.PacksDir)
	} else {
		fmt.Fprintf(w, "  %s Rule packs: %d installed, %d enabled", statusIcon(broken == 0), len(infos), enabled)
		if broken > 0 {
			fmt.Fprintf(w, ", %d broken", broken)
		}
		fmt.Fprintln(w)
	}

	if ap, err := policy.LoadActionPolicy(c.ActionPolicyPath); err != nil {
		fmt.Fprintf(w, "  %s Action policy invalid: %v\n", statusIcon(false), err)
	} else {
		fmt.Fprintf(w, "  %s Action policy: %s\n", statusIcon(true), ap.Source())
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "─── Audit Log ─────────────────────────────────────────")
	checkAuditLog(w, c.AuditPath)
	if c.LogPath != "" {
		fmt.Fprintf(w, "  Diagnostics: %s (%s)\n", c.LogPath, c.LogLevel)
	}
	fmt.Fprintln(w)
}

func checkFile(w io.Writer, name, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(true), name, path)
	} else {
		fmt.Fprintf(w, "  ⬚  %s: using built-in defaults (no %s)\n", name, path)
	}
}

func checkAuditLog(w io.Writer, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(w, "  ⬚  %s (not yet created, starts on first query)\n", path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Fprintf(w, "  %s %s (<1 KB)\n", statusIcon(true), path)
	} else {
		fmt.Fprintf(w, "  %s %s (%d KB)\n", statusIcon(true), path, sizeKB)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
