package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is a drop-in rule file that can only tighten the base rules: its
// patterns and forbidden paths are added, and a non-empty action list
// narrows the whitelist to the intersection.
type Pack struct {
	Name               string   `yaml:"name"`
	Description        string   `yaml:"description"`
	PackVersion        string   `yaml:"version"`
	Author             string   `yaml:"author"`
	Actions            []string `yaml:"actions"`
	SuspiciousPatterns []string `yaml:"suspicious_patterns"`
	ForbiddenPaths     []string `yaml:"forbidden_paths"`
}

// PackInfo is a summary of a pack for listing.
type PackInfo struct {
	Name         string
	Description  string
	Version      string
	Author       string
	Enabled      bool
	Path         string
	PatternCount int
	PathCount    int
	Err          error
}

// LoadPacks reads every .yaml file in packsDir and merges the enabled ones
// into a copy of base. Files whose name starts with "_" are disabled. A pack
// that fails to parse is reported in its PackInfo and skipped.
func LoadPacks(packsDir string, base *RuleFile) (*RuleFile, []PackInfo, error) {
	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}

	result := cloneRules(base)
	var infos []PackInfo

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		pack, err := loadPack(path)
		if err != nil {
			infos = append(infos, PackInfo{Name: baseName, Enabled: enabled, Path: path, Err: err})
			continue
		}

		info := PackInfo{
			Name:         pack.Name,
			Description:  pack.Description,
			Version:      pack.PackVersion,
			Author:       pack.Author,
			Enabled:      enabled,
			Path:         path,
			PatternCount: len(pack.SuspiciousPatterns),
			PathCount:    len(pack.ForbiddenPaths),
		}
		if info.Name == "" {
			info.Name = baseName
		}
		infos = append(infos, info)

		if enabled {
			mergePackInto(result, pack)
		}
	}

	return result, infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}

	return &pack, nil
}

func mergePackInto(target *RuleFile, pack *Pack) {
	target.SuspiciousPatterns = union(target.SuspiciousPatterns, pack.SuspiciousPatterns)
	target.ForbiddenPaths = union(target.ForbiddenPaths, pack.ForbiddenPaths)

	if len(pack.Actions) == 0 {
		return
	}
	allowed := make(map[string]bool, len(pack.Actions))
	for _, a := range pack.Actions {
		allowed[strings.ToUpper(strings.TrimSpace(a))] = true
	}
	var narrowed []string
	for _, a := range target.Actions {
		if allowed[strings.ToUpper(a)] {
			narrowed = append(narrowed, a)
		}
	}
	target.Actions = narrowed
}

func union(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			base = append(base, s)
			seen[s] = true
		}
	}
	return base
}

func cloneRules(rf *RuleFile) *RuleFile {
	clone := &RuleFile{Version: rf.Version}
	clone.Actions = append([]string(nil), rf.Actions...)
	clone.RiskLevels = append([]string(nil), rf.RiskLevels...)
	clone.SuspiciousPatterns = append([]string(nil), rf.SuspiciousPatterns...)
	clone.ForbiddenPaths = append([]string(nil), rf.ForbiddenPaths...)
	return clone
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
