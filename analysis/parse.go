package analysis

import (
	"strconv"
	"strings"
	"sync/atomic"

	gherkin "github.com/cucumber/gherkin/go/v28"
	messages "github.com/cucumber/messages/go/v24"

	"github.com/Biometria-se/grizzly-lsp"
)

var idSeq atomic.Uint64

// newMessageID mints ids for Cucumber messages, a required newId callback
// for the Gherkin parser's node ids. Uniqueness within one parse is all
// that matters; these ids are never surfaced.
func newMessageID() string {
	return strconv.FormatUint(idSeq.Add(1), 10)
}

// ParseFeature feeds rendered text to the Gherkin parser, normalizing a
// parse failure into a *grizzly.ParseError. A location-less parser error
// defaults to line 1, column 1, per the diagnostics pipeline's contract.
func ParseFeature(path, text string) (*messages.GherkinDocument, error) {
	doc, err := gherkin.ParseGherkinDocument(strings.NewReader(text), newMessageID)
	if err != nil {
		return nil, &grizzly.ParseError{Path: path, Pos: errorPosition(err), Wrapped: err}
	}

	return doc, nil
}

// locatedError is satisfied by gherkin parser errors that carry a source
// location; not every error does, hence the best-effort type assertion in
// errorPosition rather than a hard dependency on the concrete error type.
type locatedError interface {
	Location() (line, column int)
}

func errorPosition(err error) grizzly.Position {
	if le, ok := err.(locatedError); ok {
		line, column := le.Location()
		if line > 0 {
			return grizzly.Position{Line: line, Column: column}
		}
	}

	return grizzly.Position{Line: 1, Column: 1}
}

// Steps flattens every step across a parsed feature's backgrounds and
// scenarios (including those nested under Rule), resolving each to its
// effective verb via and/but/* inheritance scoped to its own
// scenario/background, in document order.
func Steps(doc *messages.GherkinDocument) []ResolvedStep {
	if doc == nil || doc.Feature == nil {
		return nil
	}

	var out []ResolvedStep

	for _, child := range doc.Feature.Children {
		switch {
		case child.Background != nil:
			out = append(out, resolveSteps(child.Background.Steps)...)
		case child.Scenario != nil:
			out = append(out, resolveSteps(child.Scenario.Steps)...)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					out = append(out, resolveSteps(rc.Background.Steps)...)
				}

				if rc.Scenario != nil {
					out = append(out, resolveSteps(rc.Scenario.Steps)...)
				}
			}
		}
	}

	return out
}

// ResolvedStep is one parsed step with its verb resolved against and/but/*
// inheritance.
type ResolvedStep struct {
	Verb     grizzly.Keyword
	Text     string
	Location grizzly.Position
}

func resolveSteps(steps []*messages.Step) []ResolvedStep {
	out := make([]ResolvedStep, 0, len(steps))

	var last grizzly.Keyword = grizzly.Given

	for _, s := range steps {
		verb := grizzly.Keyword(strings.ToLower(strings.TrimSpace(s.Keyword)))

		switch verb {
		case grizzly.Given, grizzly.When, grizzly.Then:
			last = verb
		default:
			verb = last
		}

		pos := grizzly.Position{Line: 1, Column: 1}
		if s.Location != nil {
			pos = grizzly.Position{Line: int(s.Location.Line), Column: int(s.Location.Column)}
		}

		out = append(out, ResolvedStep{Verb: verb, Text: s.Text, Location: pos})
	}

	return out
}
