package policy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gzhole/netmon/internal/intent"
	"github.com/gzhole/netmon/internal/normalize"
)

// Sanitizer canonicalises path arguments and bounds them against the
// forbidden-path list.
type Sanitizer struct {
	rules   *RuleSet
	cwd     func() (string, error)
	homeDir string
}

// NewSanitizer resolves relative paths against the process working directory.
func NewSanitizer(rules *RuleSet) *Sanitizer {
	homeDir, _ := os.UserHomeDir()
	return &Sanitizer{rules: rules, cwd: os.Getwd, homeDir: homeDir}
}

// WithWorkingDir returns a copy that resolves relative paths against cwd.
func (s *Sanitizer) WithWorkingDir(cwd func() (string, error)) *Sanitizer {
	c := *s
	c.cwd = cwd
	return &c
}

// Sanitize returns the absolute canonical form of target. Empty input and
// "none" are trivially safe and resolve to "". Existing paths have symlinks
// resolved before the forbidden check so a link cannot alias a protected
// location.
func (s *Sanitizer) Sanitize(target string) (string, error) {
	cleaned := strings.TrimSpace(strings.NewReplacer(`"`, "", "'", "").Replace(target))
	if !intent.IsSet(cleaned) {
		return "", nil
	}

	cwd, err := s.cwd()
	if err != nil {
		return "", reject(StageSanitize, "cannot resolve %q: %v", cleaned, err)
	}

	resolved := normalize.ExpandPath(cleaned, cwd, s.homeDir)
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}

	if forbidden, hit := s.forbidden(resolved); hit {
		return "", reject(StageSanitize, "Security violation: %s is inside forbidden path %s", resolved, forbidden)
	}

	if real, err := filepath.EvalSymlinks(resolved); err == nil && real != resolved {
		if forbidden, hit := s.forbidden(real); hit {
			return "", reject(StageSanitize, "Security violation: %s resolves to %s inside forbidden path %s", resolved, real, forbidden)
		}
		resolved = real
	}

	return resolved, nil
}

func (s *Sanitizer) forbidden(path string) (string, bool) {
	for _, f := range s.rules.forbidden {
		if underPrefix(path, f, s.rules.caseInsensitive) {
			return f, true
		}
	}
	return "", false
}

// underPrefix reports whether path equals prefix or lies beneath it. Both
// are expected to be clean absolute paths.
func underPrefix(path, prefix string, fold bool) bool {
	if fold {
		path = strings.ToLower(path)
		prefix = strings.ToLower(prefix)
	}
	if path == prefix {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(prefix, sep) {
		prefix += sep
	}
	return strings.HasPrefix(path, prefix)
}
