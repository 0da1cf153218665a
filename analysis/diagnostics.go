package analysis

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/Biometria-se/grizzly-lsp"
)

// Diagnose runs the full pipeline over one document's current text:
// preprocess, parse, match against inv, validate matched arguments.
// A render or parse failure short-circuits with exactly one diagnostic;
// matching always runs to completion and returns a diagnostic per
// unmatched step or rejected argument.
func Diagnose(path, text string, inv *grizzly.Inventory) []Diagnostic {
	rendered, err := Render(path, text)
	if err != nil {
		return []Diagnostic{{
			Span:     approxSpan(grizzly.Position{Line: 1, Column: 1}),
			Severity: SeverityError,
			Message:  err.Error(),
			Code:     "render-failed",
		}}
	}

	doc, err := ParseFeature(path, rendered)
	if err != nil {
		pos := grizzly.Position{Line: 1, Column: 1}
		if e, ok := err.(*grizzly.ParseError); ok {
			pos = e.Pos
		}

		return []Diagnostic{{
			Span:     approxSpan(pos),
			Severity: SeverityError,
			Message:  err.Error(),
			Code:     "parse-failed",
		}}
	}

	var diags []Diagnostic

	for _, step := range Steps(doc) {
		def, ok := inv.Lookup(step.Verb, step.Text)
		if !ok {
			diags = append(diags, Diagnostic{
				Span:     approxSpan(step.Location),
				Severity: SeverityError,
				Message:  unknownStepMessage(inv, step),
				Code:     "unknown-step",
			})

			continue
		}

		diags = append(diags, validateArguments(def, step)...)
	}

	return diags
}

func approxSpan(pos grizzly.Position) grizzly.Span {
	return grizzly.Span{Start: pos, End: pos}
}

// unknownStepMessage appends a suggested-match hint: the nearest candidate
// under the same verb by normalized edit distance on clean expression.
func unknownStepMessage(inv *grizzly.Inventory, step ResolvedStep) string {
	msg := fmt.Sprintf("no step definition matches %q", step.Text)

	best, dist := nearestCandidate(inv, step.Verb, step.Text)
	if best == nil {
		return msg
	}

	return fmt.Sprintf("%s; did you mean %q? (edit distance %d)", msg, best.CleanExpression, dist)
}

func nearestCandidate(inv *grizzly.Inventory, verb grizzly.Keyword, text string) (*grizzly.StepDefinition, int) {
	normalized := grizzly.NormalizeText(text)

	var best *grizzly.StepDefinition
	bestDist := -1

	for _, def := range inv.All(verb) {
		d := editDistance(normalized, grizzly.NormalizeText(def.CleanExpression))
		if bestDist < 0 || d < bestDist {
			best, bestDist = def, d
		}
	}

	return best, bestDist
}

// editDistance is the classic Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}

		prev = cur
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}

// validateArguments runs each matched placeholder's expr-lang validator
// (if any) against its captured value.
func validateArguments(def *grizzly.StepDefinition, step ResolvedStep) []Diagnostic {
	var diags []Diagnostic

	for i, rx := range def.Pattern.RegexPatterns {
		m := rx.FindStringSubmatch(step.Text)
		if m == nil {
			continue
		}

		groups := def.Pattern.VariantGroups[i]

		for g, phIdx := range groups {
			groupValue := g + 1
			if groupValue >= len(m) {
				break
			}

			ph := def.Pattern.Placeholders[phIdx]
			if ph.Validator == "" {
				continue
			}

			value := m[groupValue]

			ok, evalErr := evalValidator(ph.Validator, value)

			switch {
			case evalErr != nil:
				argErr := &grizzly.ArgumentError{Step: step.Text, Argument: ph.Name, Value: value, ValidatorErr: evalErr}
				diags = append(diags, Diagnostic{Span: approxSpan(step.Location), Severity: SeverityError, Message: argErr.Error(), Code: argErr.Code()})
			case !ok:
				argErr := &grizzly.ArgumentError{Step: step.Text, Argument: ph.Name, Value: value}
				diags = append(diags, Diagnostic{Span: approxSpan(step.Location), Severity: SeverityError, Message: argErr.Error(), Code: argErr.Code()})
			}
		}

		break
	}

	return diags
}

func evalValidator(source, value string) (bool, error) {
	program, err := expr.Compile(source, expr.Env(map[string]any{"value": ""}), expr.AsBool())
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, map[string]any{"value": value})
	if err != nil {
		return false, err
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("validator did not evaluate to a boolean")
	}

	return result, nil
}
