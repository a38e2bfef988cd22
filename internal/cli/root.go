package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gzhole/netmon/internal/applog"
	"github.com/gzhole/netmon/internal/config"
)

var (
	cfgFile string
	verbose bool

	v    = viper.New()
	cfg  *config.Config
	diag = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "netmon",
	Short: "netmon - natural-language system operations with a security gate",
	Long: `netmon turns free-text requests into a small set of whitelisted system
operations (monitoring, process and service control, network probes, file
navigation). Every proposal from the language model is validated, path
sanitised, checked against policy and, for YELLOW or RED risk, confirmed by
the operator before anything runs. Every query is written to the audit log.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = diag.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to config file (default: ~/.netmon/config.yaml)")
	flags.String("provider", "", "Completion provider: groq, openai, ollama, gemini")
	flags.String("model", "", "Model name for the completion provider")
	flags.String("rules", "", "Path to security rules YAML (default: ~/.netmon/rules.yaml)")
	flags.String("audit-log", "", "Path to audit log (default: ~/.netmon/ai_audit.log)")
	flags.BoolVar(&verbose, "verbose", false, "Write debug-level diagnostics to the log file")

	bindFlag("provider.type", "provider")
	bindFlag("provider.model", "model")
	bindFlag("rules_path", "rules")
	bindFlag("audit_path", "audit-log")
}

func bindFlag(key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(config.EnvFiles...); err != nil {
		return err
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := loaded.LogLevel
	if verbose {
		level = "debug"
	}
	lg, err := applog.New(level, loaded.LogPath)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	cfg, diag = loaded, lg
	diag.Debug("config loaded",
		zap.String("config_file", cfg.ConfigFile),
		zap.String("provider", cfg.Provider.Type),
		zap.String("rules", cfg.RulesPath),
	)
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}
