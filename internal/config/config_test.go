package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/netmon/internal/provider"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "NETMON_PROVIDER_TYPE", "NETMON_PROVIDER_MODEL", "NETMON_PROVIDER_API_KEY"} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)
	t.Setenv("USER", "alice")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	dir := filepath.Join(home, DefaultConfigDir)
	assert.DirExists(t, dir)
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, provider.TypeGroq, cfg.Provider.Type)
	assert.Equal(t, provider.DefaultGroqModel, cfg.Provider.Model)
	assert.Equal(t, provider.DefaultTimeout, cfg.Provider.Timeout)
	assert.Equal(t, provider.DefaultMaxTokens, cfg.Provider.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Provider.Temperature, 0.0001)
	assert.Equal(t, filepath.Join(dir, DefaultRulesFile), cfg.RulesPath)
	assert.Equal(t, filepath.Join(dir, DefaultAuditFile), cfg.AuditPath)
	assert.Equal(t, filepath.Join(dir, DefaultPacksDir), cfg.PacksDir)
	assert.Equal(t, "alice", cfg.Operator)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_ConfigFileAndEnvPrecedence(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "netmon.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
provider:
  type: openai
  model: gpt-4o
  timeout: 5s
audit_path: ~/logs/audit.log
log_level: debug
`), 0o600))
	t.Setenv("NETMON_PROVIDER_MODEL", "gpt-4.1-mini")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, file, cfg.ConfigFile)
	assert.Equal(t, provider.TypeOpenAI, cfg.Provider.Type)
	assert.Equal(t, "gpt-4.1-mini", cfg.Provider.Model, "env must override file")
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
	assert.Equal(t, filepath.Join(home, "logs", "audit.log"), cfg.AuditPath)
	assert.Equal(t, "debug", cfg.LogLevel)

	ps := cfg.ProviderSettings()
	assert.Equal(t, "sk-from-env", ps.APIKey)
	assert.Equal(t, 5*time.Second, ps.Timeout)
}

func TestLoad_ZeroTemperature(t *testing.T) {
	home := isolate(t)
	file := filepath.Join(home, "netmon.yaml")
	require.NoError(t, os.WriteFile(file, []byte("provider:\n  temperature: 0\n"), 0o600))

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Zero(t, cfg.Provider.Temperature)
	assert.Zero(t, cfg.ProviderSettings().Temperature)
}

func TestLoad_ExplicitKeyWins(t *testing.T) {
	isolate(t)
	t.Setenv("GROQ_API_KEY", "gsk_fallback")
	t.Setenv("NETMON_PROVIDER_API_KEY", "gsk_explicit")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "gsk_explicit", cfg.Provider.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	home := isolate(t)
	_, err := Load(viper.New(), filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("NETMON_TEST_A=one\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("NETMON_TEST_A=two\nNETMON_TEST_B=three\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("NETMON_TEST_A")
		os.Unsetenv("NETMON_TEST_B")
	})

	require.NoError(t, LoadEnv(first, filepath.Join(dir, "missing.env"), second))
	assert.Equal(t, "one", os.Getenv("NETMON_TEST_A"), "earlier files win")
	assert.Equal(t, "three", os.Getenv("NETMON_TEST_B"))
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/home/op", expandHome("~", "/home/op"))
	assert.Equal(t, filepath.Join("/home/op", ".netmon/rules.yaml"), expandHome("~/.netmon/rules.yaml", "/home/op"))
	assert.Equal(t, "/etc/netmon.yaml", expandHome("/etc/netmon.yaml", "/home/op"))
}
