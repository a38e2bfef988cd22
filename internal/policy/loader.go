package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/normalize"
)

// Load reads a YAML rule file. A missing file yields the built-in defaults.
// Lists left empty in the file fall back to their default.
func Load(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRules(), nil
		}
		return nil, err
	}

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}

	def := DefaultRules()
	if rf.Version == "" {
		rf.Version = def.Version
	}
	if len(rf.Actions) == 0 {
		rf.Actions = def.Actions
	}
	if len(rf.RiskLevels) == 0 {
		rf.RiskLevels = def.RiskLevels
	}
	if len(rf.SuspiciousPatterns) == 0 {
		rf.SuspiciousPatterns = def.SuspiciousPatterns
	}
	if len(rf.ForbiddenPaths) == 0 {
		rf.ForbiddenPaths = def.ForbiddenPaths
	}

	return &rf, nil
}

// DefaultRules returns the built-in rule sets for the running platform.
func DefaultRules() *RuleFile {
	risks := make([]string, 0, 3)
	for _, r := range intent.RiskLevels() {
		risks = append(risks, string(r))
	}
	return &RuleFile{
		Version:    "1",
		Actions:    intent.ActionNames(intent.Actions()),
		RiskLevels: risks,
		SuspiciousPatterns: []string{
			`;\s*rm\s`,
			`\|\s*rm\s`,
			`&&\s*rm\s`,
			"`.*`",
			`\$\(`,
			`>\s*/dev/`,
			`\.\./\.\./\.`,
		},
		ForbiddenPaths: defaultForbiddenPaths(runtime.GOOS),
	}
}

func defaultForbiddenPaths(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Windows\System32\config`,
			`C:\Windows\System32\drivers\etc`,
			`C:\Windows\System32\Tasks`,
			`C:\Users\Administrator`,
			`C:\Boot`,
		}
	case "darwin":
		return []string{
			"/etc/master.passwd",
			"/etc/sudoers",
			"/etc/sudoers.d",
			"/etc/ssh",
			"/private/etc/master.passwd",
			"/private/etc/sudoers",
			"/private/var/db/dslocal",
			"/System",
			"/var/root",
		}
	default:
		return []string{
			"/etc/shadow",
			"/etc/gshadow",
			"/etc/passwd",
			"/etc/sudoers",
			"/etc/sudoers.d",
			"/etc/ssh",
			"/boot",
			"/proc",
			"/sys",
			"/root",
		}
	}
}

// Compile validates a RuleFile and freezes it into a RuleSet. Actions and risk
// levels may narrow the built-in vocabulary but never extend it.
func Compile(rf *RuleFile) (*RuleSet, error) {
	homeDir, _ := os.UserHomeDir()
	return compile(rf, homeDir, runtime.GOOS)
}

func compile(rf *RuleFile, homeDir, goos string) (*RuleSet, error) {
	rs := &RuleSet{
		version:         rf.Version,
		actionSet:       make(map[intent.Action]struct{}),
		riskSet:         make(map[intent.RiskLevel]struct{}),
		caseInsensitive: goos == "windows" || goos == "darwin",
	}

	for _, name := range rf.Actions {
		a := intent.Action(strings.ToUpper(strings.TrimSpace(name)))
		if !a.IsKnown() {
			return nil, fmt.Errorf("unknown action %q in rules", name)
		}
		if _, dup := rs.actionSet[a]; dup {
			continue
		}
		rs.actionSet[a] = struct{}{}
	}
	// keep vocabulary order regardless of file order
	for _, a := range intent.Actions() {
		if _, ok := rs.actionSet[a]; ok {
			rs.actions = append(rs.actions, a)
		}
	}

	for _, name := range rf.RiskLevels {
		level := intent.RiskLevel(strings.ToUpper(strings.TrimSpace(name)))
		if !level.IsKnown() {
			return nil, fmt.Errorf("unknown risk level %q in rules", name)
		}
		rs.riskSet[level] = struct{}{}
	}

	for _, pattern := range rf.SuspiciousPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid suspicious pattern %q: %w", pattern, err)
		}
		rs.suspicious = append(rs.suspicious, re)
	}

	for _, p := range rf.ForbiddenPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "~") {
			p = normalize.ExpandPath(p, string(filepath.Separator), homeDir)
		}
		rs.forbidden = append(rs.forbidden, filepath.Clean(p))
	}

	return rs, nil
}

// MustDefault compiles DefaultRules and panics on error. The defaults are
// static, so failure is a programming error.
func MustDefault() *RuleSet {
	rs, err := Compile(DefaultRules())
	if err != nil {
		panic(err)
	}
	return rs
}
