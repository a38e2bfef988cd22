// Package unicode flags invisible or look-alike characters in intent
// arguments. Provider output is untrusted, and a target that renders
// differently from what is executed would defeat operator confirmation.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity of a finding.
type Severity string

const (
	SeverityReject Severity = "reject"
	SeverityWarn   Severity = "warn"
)

// Finding is one suspicious character in an argument.
type Finding struct {
	Class     string
	Offset    int
	Codepoint string
	Severity  Severity
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s at byte %d", f.Class, f.Codepoint, f.Offset)
}

// Report is the result of inspecting one argument.
type Report struct {
	Findings []Finding
	// Visible is the input with every flagged character removed.
	Visible string
}

// Clean reports whether nothing was flagged.
func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Rejects returns the first reject-level finding.
func (r Report) Rejects() (Finding, bool) {
	for _, f := range r.Findings {
		if f.Severity == SeverityReject {
			return f, true
		}
	}
	return Finding{}, false
}

type class struct {
	name     string
	severity Severity
	match    func(rune) bool
}

var classes = []class{
	{"zero-width", SeverityReject, isZeroWidth},
	{"bidi-control", SeverityReject, isBidi},
	{"tag-char", SeverityReject, func(r rune) bool { return r >= 0xE0001 && r <= 0xE007F }},
	{"control-char", SeverityReject, isControl},
	{"homoglyph", SeverityWarn, isHomoglyph},
}

// Inspect scans s rune by rune. Invalid UTF-8 is a reject-level finding.
func Inspect(s string) Report {
	var (
		rep     Report
		visible strings.Builder
	)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			rep.Findings = append(rep.Findings, Finding{
				Class:     "invalid-utf8",
				Offset:    i,
				Codepoint: fmt.Sprintf("0x%02X", s[i]),
				Severity:  SeverityReject,
			})
			i++
			continue
		}

		flagged := false
		for _, c := range classes {
			if c.match(r) {
				rep.Findings = append(rep.Findings, Finding{
					Class:     c.name,
					Offset:    i,
					Codepoint: fmt.Sprintf("U+%04X", r),
					Severity:  c.severity,
				})
				flagged = true
				break
			}
		}
		if !flagged {
			visible.WriteRune(r)
		}
		i += size
	}
	rep.Visible = visible.String()
	return rep
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF', '\u2060', '\u180E', '\u200E', '\u200F':
		return true
	}
	return false
}

func isBidi(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

// Arguments are single-line, so unlike free text tab and newline count too.
func isControl(r rune) bool {
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

func isHomoglyph(r rune) bool {
	if unicode.Is(unicode.Cyrillic, r) {
		return strings.ContainsRune(cyrillicLookalikes, r)
	}
	if unicode.Is(unicode.Greek, r) {
		return strings.ContainsRune(greekLookalikes, r)
	}
	return false
}

// Letters that render like Latin ones in common terminal fonts.
const (
	cyrillicLookalikes = "аАВсСеЕНіІКМоОрРТхХуУ"
	greekLookalikes    = "ΑΒΕΗΙΚΜΝΟοΡΤΧΥΖ"
)
