package analysis

import (
	"regexp"
	"strings"

	messages "github.com/cucumber/messages/go/v24"
)

// Document is one buffer's analyzed state: its text split into lines, its
// diagnostics, and the variables declared by its matched steps. Feature is
// not filled in by this package or by the server; it stays nil.
type Document struct {
	URI     string
	Version int32
	Text    string
	Lines   []string

	Feature     *messages.GherkinDocument
	Diagnostics []Diagnostic
	Variables   []string
}

// NewDocument splits text into lines the way Classify/StepText expect:
// no trailing newline per entry.
func NewDocument(uri string, version int32, text string) *Document {
	return &Document{URI: uri, Version: version, Text: text, Lines: splitLines(text)}
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	return lines
}

// compileVariablePatterns compiles every one of Config.VariablePattern's
// regex strings, each expected to have one capture group naming a
// variable. Strings that fail to compile are silently dropped.
func compileVariablePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		if rx, err := regexp.Compile(p); err == nil {
			out = append(out, rx)
		}
	}

	return out
}

// ExtractVariables returns, in first-occurrence order, the first
// capture-group value of every variable_pattern match across every step
// text in doc — "declared earlier in the document" per variable
// completion's contract.
func ExtractVariables(doc *Document, variablePatterns []string) []string {
	patterns := compileVariablePatterns(variablePatterns)

	seen := make(map[string]bool)
	var vars []string

	for i := range doc.Lines {
		_, text, _, ok := StepText(doc.Lines, i)
		if !ok {
			continue
		}

		for _, rx := range patterns {
			m := rx.FindStringSubmatch(text)
			if m == nil || len(m) < 2 {
				continue
			}

			if !seen[m[1]] {
				seen[m[1]] = true
				vars = append(vars, m[1])
			}
		}
	}

	return vars
}
