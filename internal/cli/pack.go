package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/netmon/internal/policy"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage security rule packs",
	Long: `Manage netmon security rule packs.

Rule packs are YAML files that add suspicious patterns and forbidden paths to
the base rules. Packs only tighten: they can never add actions or risk levels.
Packs live in ~/.netmon/packs/ and are merged with the base rules at startup.
A file whose name starts with "_" is disabled.

Examples:
  netmon pack list                 # List installed packs
  netmon pack enable databases     # Enable a pack
  netmon pack disable databases    # Disable a pack
  netmon pack show databases       # Show pack contents`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed rule packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled rule pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a rule pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show the contents of a rule pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packEnableCmd)
	packCmd.AddCommand(packDisableCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	dir := cfg.PacksDir
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// packName rejects names that would escape the packs directory.
func packName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid pack name %q", name)
	}
	return strings.TrimPrefix(strings.TrimSuffix(name, ".yaml"), "_"), nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	_, infos, err := policy.LoadPacks(dir, policy.DefaultRules())
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No rule packs installed.")
		fmt.Fprintf(out, "\nTo install packs, copy YAML files to: %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Installed Rule Packs:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range infos {
		fmt.Fprintf(out, "  %s  %-25s %s\n", statusIcon(info.Enabled && info.Err == nil), info.Name, info.Description)
		if info.Err != nil {
			fmt.Fprintf(out, "       error: %v\n", info.Err)
			continue
		}
		if info.Version != "" {
			fmt.Fprintf(out, "       v%s by %s  (%d patterns, %d paths)\n", info.Version, orDefault(info.Author, "unknown"), info.PatternCount, info.PathCount)
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\nPacks directory: %s\n", dir)
	return nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name, err := packName(args[0])
	if err != nil {
		return err
	}
	disabledPath := filepath.Join(dir, "_"+name+".yaml")
	enabledPath := filepath.Join(dir, name+".yaml")

	if _, err := os.Stat(disabledPath); err == nil {
		if err := os.Rename(disabledPath, enabledPath); err != nil {
			return fmt.Errorf("failed to enable pack: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Pack '%s' enabled.\n", statusIcon(true), name)
		return nil
	}

	if _, err := os.Stat(enabledPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' is already enabled.\n", name)
		return nil
	}

	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packDisable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name, err := packName(args[0])
	if err != nil {
		return err
	}
	enabledPath := filepath.Join(dir, name+".yaml")
	disabledPath := filepath.Join(dir, "_"+name+".yaml")

	if _, err := os.Stat(enabledPath); err == nil {
		if err := os.Rename(enabledPath, disabledPath); err != nil {
			return fmt.Errorf("failed to disable pack: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Pack '%s' disabled.\n", statusIcon(false), name)
		return nil
	}

	if _, err := os.Stat(disabledPath); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' is already disabled.\n", name)
		return nil
	}

	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	name, err := packName(args[0])
	if err != nil {
		return err
	}

	// Try enabled, then disabled
	path := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, "_"+name+".yaml")
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack '%s' not found in %s", name, dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
