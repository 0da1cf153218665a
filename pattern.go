package grizzly

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Placeholder describes one "{name}" / "{name:Type}" slot in a step
// pattern, in source order.
type Placeholder struct {
	Name         string
	TypeName     string
	Quoted       bool
	Alternatives []string
	// Validator is a boolean expr-lang expression evaluated against
	// {value: <captured string>} during diagnostics matching. Empty means
	// no validator is registered for this placeholder.
	Validator string
	// FileRef marks a placeholder whose captured value names a file under
	// a configured project subdirectory, consulted by go-to-definition.
	FileRef bool
}

// Pattern is the result of normalizing a step-definition pattern string.
type Pattern struct {
	Source             string
	CleanExpression    string
	RegexPatterns      []*regexp.Regexp
	ExpressionVariants []string
	Placeholders       []Placeholder
	// VariantGroups[i] lists, in order, the Placeholders index each capture
	// group of RegexPatterns[i] corresponds to. A placeholder whose
	// alternative was chosen for this variant contributes no group and so
	// has no entry here.
	VariantGroups [][]int
}

var placeholderLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}:]`},
	{Name: "Literal", Pattern: `[^{}:A-Za-z_]+`},
})

// placeholderNode matches "{}", "{name}" or "{name:Type}".
type placeholderNode struct {
	Pos      lexer.Position
	EndPos   lexer.Position
	Name     *string `parser:"'{' (@Ident"`
	TypeName *string `parser:"(':' @Ident)?)? '}'"`
}

type patternPart struct {
	Placeholder *placeholderNode `parser:"( @@"`
	Text        *string          `parser:"| @(Literal|Ident) )"`
}

type patternAST struct {
	Parts []*patternPart `parser:"@@*"`
}

var patternParser = participle.MustBuild[patternAST](
	participle.Lexer(placeholderLexer),
)

// placeholderSpan is a placeholder occurrence located in the raw pattern
// string, including the surrounding quote characters when the placeholder
// is a quoted string slot.
type placeholderSpan struct {
	Placeholder
	SlotStart, SlotEnd int // byte offsets in the source pattern, quotes included when Quoted
}

// NormalizePattern converts a step-definition pattern string into its
// regex forms and display variants. registry supplies the alternatives
// for typed placeholders; pass nil to treat every placeholder as
// unconstrained.
func NormalizePattern(pattern string, registry *ParseTypeRegistry) (*Pattern, error) {
	ast, err := patternParser.ParseString("", pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Reason: err.Error(), Pos: Position{Line: 1, Column: 1}}
	}

	spans := make([]placeholderSpan, 0)

	for _, part := range ast.Parts {
		if part.Placeholder == nil {
			continue
		}

		node := part.Placeholder
		start, end := node.Pos.Offset, node.EndPos.Offset

		quoted := false
		slotStart, slotEnd := start, end

		if start > 0 && pattern[start-1] == '"' && end < len(pattern) && pattern[end] == '"' {
			quoted = true
			slotStart, slotEnd = start-1, end+1
		}

		ph := Placeholder{Quoted: quoted}
		if node.Name != nil {
			ph.Name = *node.Name
		}

		if node.TypeName != nil {
			ph.TypeName = *node.TypeName

			if registry != nil {
				if alts, ok := registry.Lookup(ph.TypeName); ok {
					ph.Alternatives = alts
				}

				ph.FileRef = registry.IsPayloadType(ph.TypeName)
			}
		}

		spans = append(spans, placeholderSpan{Placeholder: ph, SlotStart: slotStart, SlotEnd: slotEnd})
	}

	p := &Pattern{Source: pattern}

	for _, s := range spans {
		p.Placeholders = append(p.Placeholders, s.Placeholder)
	}

	p.CleanExpression = renderPattern(pattern, spans, nil, func(string) string { return "" })

	variants, err := expandVariants(pattern, spans)
	if err != nil {
		return nil, err
	}

	p.ExpressionVariants = variants.labels
	p.RegexPatterns = variants.regexes
	p.VariantGroups = variants.groups

	if len(p.RegexPatterns) == 0 {
		return nil, &PatternError{Pattern: pattern, Reason: "no patterns produced", Pos: Position{Line: 1, Column: 1}}
	}

	return p, nil
}

// renderPattern reconstructs pattern with every placeholder span replaced:
// by its chosen alternative, by `""` for an unchosen quoted slot, or by
// unchosen(name) for an unchosen unquoted one. choice, if non-nil, maps placeholder index to the
// chosen alternative (nil entries mean "no alternative chosen").
func renderPattern(pattern string, spans []placeholderSpan, choice []*string, unchosen func(string) string) string {
	var b strings.Builder

	last := 0

	for i, s := range spans {
		b.WriteString(pattern[last:s.SlotStart])

		var alt *string
		if choice != nil {
			alt = choice[i]
		}

		switch {
		case alt != nil && s.Quoted:
			b.WriteByte('"')
			b.WriteString(*alt)
			b.WriteByte('"')
		case alt != nil:
			b.WriteString(*alt)
		case s.Quoted:
			b.WriteString(`""`)
		default:
			b.WriteString(unchosen(s.Name))
		}

		last = s.SlotEnd
	}

	b.WriteString(pattern[last:])

	return b.String()
}

type expandResult struct {
	labels  []string
	regexes []*regexp.Regexp
	groups  [][]int
}

// expandVariants produces the Cartesian product of every placeholder's
// alternatives (placeholders without alternatives contribute exactly one
// "choice": none), in placeholder order, last placeholder varying fastest.
func expandVariants(pattern string, spans []placeholderSpan) (*expandResult, error) {
	dims := make([][]string, len(spans))
	for i, s := range spans {
		if len(s.Alternatives) > 0 {
			dims[i] = s.Alternatives
		} else {
			dims[i] = []string{""} // single "no choice" slot, see combo loop below
		}
	}

	result := &expandResult{}

	var walk func(i int, choice []*string) error
	walk = func(i int, choice []*string) error {
		if i == len(spans) {
			label := renderPattern(pattern, spans, choice, func(string) string { return "" })

			rx, err := buildRegex(pattern, spans, choice)
			if err != nil {
				return err
			}

			var groups []int
			for idx, c := range choice {
				if c == nil {
					groups = append(groups, idx)
				}
			}

			result.labels = append(result.labels, label)
			result.regexes = append(result.regexes, rx)
			result.groups = append(result.groups, groups)

			return nil
		}

		if len(spans[i].Alternatives) == 0 {
			next := append(append([]*string{}, choice...), (*string)(nil))
			return walk(i+1, next)
		}

		for _, alt := range spans[i].Alternatives {
			v := alt
			next := append(append([]*string{}, choice...), &v)

			if err := walk(i+1, next); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(0, nil); err != nil {
		return nil, err
	}

	return result, nil
}

func buildRegex(pattern string, spans []placeholderSpan, choice []*string) (*regexp.Regexp, error) {
	var b strings.Builder

	b.WriteByte('^')

	last := 0

	for i, s := range spans {
		b.WriteString(regexp.QuoteMeta(pattern[last:s.SlotStart]))

		var alt *string
		if choice != nil {
			alt = choice[i]
		}

		switch {
		case alt != nil && s.Quoted:
			b.WriteString(`"(?i:`)
			b.WriteString(regexp.QuoteMeta(*alt))
			b.WriteString(`)?"`)
		case alt != nil:
			b.WriteString(`(?i:`)
			b.WriteString(regexp.QuoteMeta(*alt))
			b.WriteString(`)?`)
		case s.Quoted:
			b.WriteString(`"([^"]*)"`)
		default:
			b.WriteString(`(.*)`)
		}

		last = s.SlotEnd
	}

	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteByte('$')

	rx, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}

	return rx, nil
}
