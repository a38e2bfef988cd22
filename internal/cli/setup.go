package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/netmon/internal/config"
	"github.com/gzhole/netmon/internal/policy"
)

var setupForce bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write default configuration, rules and action policy",
	Long: `Write editable defaults into ~/.netmon:

  config.yaml     provider and path settings
  rules.yaml      action whitelist, risk tiers, suspicious patterns, forbidden paths
  actions.cedar   operator action policy (permit-all with commented examples)
  packs/          rule pack directory with a disabled example pack

Existing files are kept unless --force is given.

  netmon setup
  netmon setup --force`,
	Args: cobra.NoArgs,
	RunE: setupCommand,
}

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(setupCmd)
}

const configTemplate = `# netmon configuration. Environment variables NETMON_<KEY> override these,
# e.g. NETMON_PROVIDER_TYPE=ollama.
provider:
  type: groq            # groq, openai, ollama, gemini
  model: ""             # empty selects the backend default
  base_url: ""          # override for self-hosted OpenAI-compatible servers
  # api_key: ""         # prefer GROQ_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY
  timeout: 30s
  temperature: 0.2
  max_tokens: 1024
log_level: info
metrics_addr: ""        # e.g. 127.0.0.1:9464 to expose /metrics from the shell
`

const actionPolicyTemplate = policy.DefaultActionPolicy + `

// Examples. Uncomment to tighten; a forbid always wins over the permit above.
//
// @reason("Killing processes is disabled on this host")
// forbid(principal, action == Action::"KILL_PROC", resource);
//
// @reason("Only the status of services may be queried")
// forbid(principal, action == Action::"SERVICE_OP", resource)
//   unless { context.value == "status" };
`

const examplePackTemplate = `# Rule packs add patterns and forbidden paths to the base rules.
# Rename to example.yaml (or run "netmon pack enable example") to enable.
name: example
description: Protect database data directories
version: "1"
author: local
suspicious_patterns:
  - '(?i)drop\s+table'
forbidden_paths:
  - /var/lib/postgresql
  - /var/lib/mysql
`

type setupFile struct {
	name string
	path string
	data []byte
}

func setupCommand(cmd *cobra.Command, args []string) error {
	rules, err := yaml.Marshal(policy.DefaultRules())
	if err != nil {
		return fmt.Errorf("failed to encode default rules: %w", err)
	}

	files := []setupFile{
		{"config", filepath.Join(cfg.ConfigDir, config.DefaultConfigName+".yaml"), []byte(configTemplate)},
		{"rules", cfg.RulesPath, append([]byte("# netmon security rules\n"), rules...)},
		{"action policy", cfg.ActionPolicyPath, []byte(actionPolicyTemplate)},
		{"example pack", filepath.Join(cfg.PacksDir, "_example.yaml"), []byte(examplePackTemplate)},
	}
	return writeSetupFiles(cmd.OutOrStdout(), files, setupForce)
}

func writeSetupFiles(w io.Writer, files []setupFile, force bool) error {
	for _, f := range files {
		if existing, err := os.ReadFile(f.path); err == nil && !force {
			state := "kept"
			if bytes.Equal(existing, f.data) {
				state = "up to date"
			}
			fmt.Fprintf(w, "  ⬚  %-14s %s (%s)\n", f.name, f.path, state)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(f.path), err)
		}
		if err := os.WriteFile(f.path, f.data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(w, "  %s %-14s %s\n", statusIcon(true), f.name, f.path)
	}
	return nil
}
