package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gzhole/netmon/internal/provider"
)

const (
	DefaultConfigDir        = ".netmon"
	DefaultConfigName       = "config"
	DefaultRulesFile        = "rules.yaml"
	DefaultPacksDir         = "packs"
	DefaultActionPolicyFile = "actions.cedar"
	DefaultAuditFile        = "ai_audit.log"
	DefaultLogFile          = "netmon.log"

	EnvPrefix = "NETMON"
)

// EnvFiles are loaded in order before configuration is read. Values already
// present in the environment are never overwritten.
var EnvFiles = []string{".env", "/etc/netmon/.env"}

type ProviderConfig struct {
	Type        string        `mapstructure:"type"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

type Config struct {
	ConfigDir        string         `mapstructure:"-"`
	ConfigFile       string         `mapstructure:"-"`
	Provider         ProviderConfig `mapstructure:"provider"`
	RulesPath        string         `mapstructure:"rules_path"`
	PacksDir         string         `mapstructure:"packs_dir"`
	ActionPolicyPath string         `mapstructure:"action_policy_path"`
	AuditPath        string         `mapstructure:"audit_path"`
	LogPath          string         `mapstructure:"log_path"`
	LogLevel         string         `mapstructure:"log_level"`
	MetricsAddr      string         `mapstructure:"metrics_addr"`
	Operator         string         `mapstructure:"operator"`
}

// ProviderSettings converts the provider section for provider.New.
func (c *Config) ProviderSettings() provider.Config {
	return provider.Config{
		Type:        c.Provider.Type,
		BaseURL:     c.Provider.BaseURL,
		APIKey:      c.Provider.APIKey,
		Model:       c.Provider.Model,
		Temperature: float32(c.Provider.Temperature),
		MaxTokens:   c.Provider.MaxTokens,
		Timeout:     c.Provider.Timeout,
	}
}

// LoadEnv reads dotenv files, skipping any that do not exist.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves configuration from, lowest to highest precedence: built-in
// defaults, the config file, NETMON_* environment variables, and any flags
// the caller bound on v. configFile may be empty, in which case
// ~/.netmon/config.yaml is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	setDefaults(v, configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(configDir)
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigDir = configDir
	cfg.ConfigFile = v.ConfigFileUsed()

	applyDefaults(cfg, homeDir)
	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("provider.type", provider.TypeGroq)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.timeout", provider.DefaultTimeout)
	v.SetDefault("provider.temperature", provider.DefaultTemperature)
	v.SetDefault("provider.max_tokens", provider.DefaultMaxTokens)
	v.SetDefault("rules_path", filepath.Join(configDir, DefaultRulesFile))
	v.SetDefault("packs_dir", filepath.Join(configDir, DefaultPacksDir))
	v.SetDefault("action_policy_path", filepath.Join(configDir, DefaultActionPolicyFile))
	v.SetDefault("audit_path", filepath.Join(configDir, DefaultAuditFile))
	v.SetDefault("log_path", filepath.Join(configDir, DefaultLogFile))
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("operator", "")
}

// providerKeyEnv names the conventional key variable of each backend.
var providerKeyEnv = map[string]string{
	provider.TypeGroq:   "GROQ_API_KEY",
	provider.TypeOpenAI: "OPENAI_API_KEY",
	provider.TypeGemini: "GEMINI_API_KEY",
}

func applyDefaults(cfg *Config, homeDir string) {
	cfg.Provider.Type = strings.ToLower(cfg.Provider.Type)
	if cfg.Provider.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Provider.Type]; ok {
			cfg.Provider.APIKey = os.Getenv(env)
		}
	}
	if cfg.Provider.Model == "" && cfg.Provider.Type == provider.TypeGroq {
		cfg.Provider.Model = provider.DefaultGroqModel
	}

	for _, p := range []*string{&cfg.RulesPath, &cfg.PacksDir, &cfg.ActionPolicyPath, &cfg.AuditPath, &cfg.LogPath} {
		*p = expandHome(*p, homeDir)
	}

	if cfg.Operator == "" {
		cfg.Operator = firstNonEmpty(os.Getenv("USER"), os.Getenv("USERNAME"), "operator")
	}
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
