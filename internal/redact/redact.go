// Package redact scrubs credentials from text before it is persisted or
// shown, and flattens it to a single line so one audit field cannot forge
// another record.
package redact

import (
	"regexp"
	"strings"
)

const Placeholder = "[REDACTED]"

type rule struct {
	name string
	re   *regexp.Regexp
}

var rules = []rule{
	// completion providers
	{"groq-key", regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`)},
	{"openai-key", regexp.MustCompile(`\bsk-(proj-)?[A-Za-z0-9_-]{20,}`)},
	{"google-key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},

	{"aws-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`)},
	{"private-key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"url-credentials", regexp.MustCompile(`(https?://)[^:/\s]+:[^@/\s]+@`)},
	{"assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token|password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`)},
}

// Text replaces every credential-looking span in s with Placeholder.
func Text(s string) string {
	for _, r := range rules {
		if r.name == "url-credentials" {
			s = r.re.ReplaceAllString(s, "${1}"+Placeholder+"@")
			continue
		}
		s = r.re.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Matches returns the names of the rules that fire on s.
func Matches(s string) []string {
	var names []string
	for _, r := range rules {
		if r.re.MatchString(s) {
			names = append(names, r.name)
		}
	}
	return names
}

var lineBreaks = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`)

// Line redacts s and escapes line breaks.
func Line(s string) string {
	return lineBreaks.Replace(Text(s))
}

// Key masks a configured secret for display, keeping a short prefix and
// the last four characters.
func Key(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	}
	prefix := secret[:4]
	if i := strings.IndexAny(secret, "_-"); i > 0 && i < 8 {
		prefix = secret[:i+1]
	}
	return prefix + "****" + secret[len(secret)-4:]
}
