package normalize

import (
	"path/filepath"
	"strings"
)

// synonyms maps operator vocabulary to the canonical tokens the completion
// provider is prompted with.
var synonyms = map[string]string{
	"terminate": "kill",
	"nuke":      "kill",
	"stop":      "stop",
	"halt":      "stop",
	"check":     "monitor",
	"usage":     "monitor",
	"stats":     "monitor",
	"lookup":    "search",
	"find":      "search",
	"directory": "dir",
	"folder":    "dir",
	"move":      "cd",
	"change":    "cd",
}

// Query lower-cases text, splits it on whitespace and replaces every token
// found in the synonym table with its canonical form. Unknown tokens pass
// through unchanged.
func Query(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		if canonical, ok := synonyms[w]; ok {
			words[i] = canonical
		}
	}
	return strings.Join(words, " ")
}

// Tokens splits already-normalized text into bare words, dropping
// punctuation so "cpu?" still matches "cpu".
func Tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_')
	})
}

// ExpandPath resolves ~ against homeDir and relative paths against cwd, then
// cleans the result. It does not touch the filesystem.
func ExpandPath(path, cwd, homeDir string) string {
	if homeDir != "" {
		switch {
		case path == "~":
			path = homeDir
		case strings.HasPrefix(path, "~/"), strings.HasPrefix(path, `~\`):
			path = filepath.Join(homeDir, path[2:])
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	return filepath.Clean(path)
}
