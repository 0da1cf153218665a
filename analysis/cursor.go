package analysis

import (
	"regexp"
	"strings"

	"github.com/Biometria-se/grizzly-lsp"
)

// CursorKind is the classification a cursor position resolves to.
type CursorKind int

const (
	CursorOutside CursorKind = iota
	CursorKeyword
	CursorStep
	CursorVariableRef
	CursorArgumentEnum
)

// Cursor is the result of classify(line, column): what's being typed at a
// buffer position, and everything the completion engine needs to act on it.
type Cursor struct {
	Kind CursorKind

	// Keyword
	LegalKeywords []string
	Prefix        string

	// Step
	Verb             grizzly.Keyword
	Text             string // text after the verb, up to the cursor
	VerbEndColumn    int    // column right after "<verb> "

	// VariableRef
	VariablePrefix string

	// ArgumentEnum
	Alternatives []string
	SlotStart    int // column of the first character inside the quotes
	SlotEnd      int // column of the closing quote, one past the last character inside
}

// FuzzyMatch reports whether prefix's characters appear, in order, within
// candidate, case-insensitively.
func FuzzyMatch(candidate, prefix string) bool { return fuzzyMatch(candidate, prefix) }

var stepVerbPattern = regexp.MustCompile(`^(\s*)(Given|When|Then|And|But|\*)\b\s?`)

var headerPattern = regexp.MustCompile(`^\s*(Feature|Background|Scenario Outline|Scenario Template|Scenario|Examples|Scenarios)\s*:`)

// stepVerbAt reports the keyword token (if any) leading line, the column
// right after it (and its following space, if any), and whether that
// token is an explicit verb (given/when/then) as opposed to and/but/*.
func stepVerbAt(line string) (token string, verbEndColumn int, explicit bool, ok bool) {
	m := stepVerbPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return "", 0, false, false
	}

	token = line[m[4]:m[5]]
	verbEndColumn = m[1]

	switch strings.ToLower(token) {
	case "given", "when", "then":
		return token, verbEndColumn, true, true
	default:
		return token, verbEndColumn, false, true
	}
}

func headerKind(line string) (string, bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}

	return m[1], true
}

func isScenarioBoundary(line string) bool {
	kind, ok := headerKind(line)
	if !ok {
		return false
	}

	switch kind {
	case "Background", "Scenario", "Scenario Outline", "Scenario Template":
		return true
	default:
		return false
	}
}

// EffectiveVerb resolves the verb that governs lines[line], following the
// and/but/* inheritance rule: the nearest preceding line with an explicit
// verb in the same scenario, defaulting to "given" if none.
func EffectiveVerb(lines []string, line int) grizzly.Keyword {
	if line >= 0 && line < len(lines) {
		if token, _, explicit, ok := stepVerbAt(lines[line]); ok && explicit {
			return grizzly.Keyword(strings.ToLower(token))
		}
	}

	for l := line - 1; l >= 0; l-- {
		if isScenarioBoundary(lines[l]) {
			break
		}

		if token, _, explicit, ok := stepVerbAt(lines[l]); ok && explicit {
			return grizzly.Keyword(strings.ToLower(token))
		}
	}

	return grizzly.Given
}

// StepText returns the effective verb and the text following the step
// keyword on lines[line], if the line opens with one.
func StepText(lines []string, line int) (verb grizzly.Keyword, text string, verbEndColumn int, ok bool) {
	_, end, _, stepOK := stepVerbAt(lines[line])
	if !stepOK {
		return "", "", 0, false
	}

	return EffectiveVerb(lines, line), lines[line][end:], end, true
}

// scanHeaders reports the keyword-legality state above line (lines strictly
// before it): whether a Feature/Background header has been seen, how many
// Scenario/Scenario Outline/Scenario Template headers have been seen, and
// whether an explicit step keyword has been seen within the current
// scenario scope.
func scanHeaders(lines []string, line int) (hasFeature, hasBackground bool, scenarios int, stepKeywordSeen bool) {
	for l := 0; l < line && l < len(lines); l++ {
		if kind, ok := headerKind(lines[l]); ok {
			switch kind {
			case "Feature":
				hasFeature = true
			case "Background":
				hasBackground = true
				stepKeywordSeen = false
			case "Scenario", "Scenario Outline", "Scenario Template":
				scenarios++
				stepKeywordSeen = false
			}

			continue
		}

		if _, _, explicit, ok := stepVerbAt(lines[l]); ok && explicit {
			stepKeywordSeen = true
		}
	}

	return
}

// legalKeywords implements the keyword-legality automaton over
// (has_feature, has_background, scenarios_seen, step_keyword_seen).
//
// Scenario Outline/Scenario Template are only offered before the first
// Scenario header; once a scenario exists, "Scenario" remains available to
// start another, and Examples/Scenarios become legal only after a step
// keyword has been used in the current scope (they never appear before any
// step has been written).
func legalKeywords(lines []string, line int) []string {
	hasFeature, hasBackground, scenarios, stepKeywordSeen := scanHeaders(lines, line)

	if !hasFeature {
		return []string{"Feature"}
	}

	if scenarios == 0 {
		out := []string{}
		if !hasBackground {
			out = append(out, "Background")
		}

		return append(out, "Scenario", "Scenario Outline", "Scenario Template")
	}

	out := []string{"Scenario", "Given", "When", "Then", "And", "But"}
	if stepKeywordSeen {
		out = append(out, "Examples", "Scenarios")
	}

	return out
}

// fuzzyMatch reports whether prefix's characters appear, in order, within
// candidate, case-insensitively. Subsequence membership, not contiguous
// substring: this is a judgment call where the source behavior is
// ambiguous (see the keyword-narrowing open question).
func fuzzyMatch(candidate, prefix string) bool {
	if prefix == "" {
		return true
	}

	candidate = strings.ToLower(candidate)
	prefix = strings.ToLower(prefix)

	i := 0
	for _, c := range candidate {
		if i >= len(prefix) {
			break
		}

		if rune(prefix[i]) == c {
			i++
		}
	}

	return i == len(prefix)
}

var variableRefOpen = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]*)$`)

// Classify answers classify(line, column): what is being typed at a
// position in lines, consulting inv for argument-enumeration context.
func Classify(lines []string, inv *grizzly.Inventory, line, col int) Cursor {
	if line < 0 || line >= len(lines) {
		return Cursor{Kind: CursorOutside}
	}

	text := lines[line]
	if col > len(text) {
		col = len(text)
	}

	before := text[:col]

	if strings.TrimLeft(before, " \t") == "" {
		return Cursor{Kind: CursorKeyword, LegalKeywords: legalKeywords(lines, line), Prefix: ""}
	}

	if m := variableRefOpen.FindStringSubmatch(before); m != nil {
		return Cursor{Kind: CursorVariableRef, VariablePrefix: m[1]}
	}

	if verb, fullText, verbEnd, ok := StepText(lines, line); ok && col >= verbEnd {
		if _, alts, slotStart, slotEnd, ok := argumentEnumAt(inv, verb, fullText, col-verbEnd); ok {
			return Cursor{
				Kind: CursorArgumentEnum, Verb: verb, Alternatives: alts,
				VerbEndColumn: verbEnd, SlotStart: verbEnd + slotStart, SlotEnd: verbEnd + slotEnd,
			}
		}

		return Cursor{Kind: CursorStep, Verb: verb, Text: text[verbEnd:col], VerbEndColumn: verbEnd}
	}

	// A bare leading keyword prefix being typed (e.g. "Giv|") with no
	// following text yet is still Keyword classification, not Step/Outside.
	word := strings.TrimLeft(before, " \t")
	if !strings.ContainsAny(word, " \t") {
		return Cursor{Kind: CursorKeyword, LegalKeywords: legalKeywords(lines, line), Prefix: word}
	}

	return Cursor{Kind: CursorOutside}
}

// argumentEnumAt locates the quoted slot at byteOffset within text (the
// portion of the line after the verb) and reports whether it corresponds
// to a placeholder with registered alternatives on the step matched by
// (verb, text).
func argumentEnumAt(inv *grizzly.Inventory, verb grizzly.Keyword, text string, byteOffset int) (ph grizzly.Placeholder, alternatives []string, slotStart, slotEnd int, ok bool) {
	if inv == nil {
		return grizzly.Placeholder{}, nil, 0, 0, false
	}

	def, found := inv.Lookup(verb, strings.TrimRight(text, "\n"))
	if !found {
		return grizzly.Placeholder{}, nil, 0, 0, false
	}

	quotedPlaceholders := make([]grizzly.Placeholder, 0)
	for _, p := range def.Pattern.Placeholders {
		if p.Quoted {
			quotedPlaceholders = append(quotedPlaceholders, p)
		}
	}

	slots := quotedSlots(text)

	for i, slot := range slots {
		if byteOffset < slot[0] || byteOffset > slot[1] {
			continue
		}

		if i >= len(quotedPlaceholders) {
			return grizzly.Placeholder{}, nil, 0, 0, false
		}

		candidate := quotedPlaceholders[i]
		if len(candidate.Alternatives) == 0 {
			return grizzly.Placeholder{}, nil, 0, 0, false
		}

		return candidate, candidate.Alternatives, slot[0], slot[1], true
	}

	return grizzly.Placeholder{}, nil, 0, 0, false
}

// QuotedSlots exposes quotedSlots for callers outside the package that
// need to locate a step's quoted argument slots, such as go-to-definition
// resolving a payload-file argument.
func QuotedSlots(text string) [][2]int { return quotedSlots(text) }

// quotedSlots returns the [innerStart, innerEnd) byte offsets of each
// "..." region in text, in left-to-right order: innerStart is the first
// byte after the opening quote and innerEnd the offset of the closing quote.
func quotedSlots(text string) [][2]int {
	var slots [][2]int

	open := -1
	for i, c := range text {
		if c != '"' {
			continue
		}

		if open < 0 {
			open = i + 1
			continue
		}

		slots = append(slots, [2]int{open, i})
		open = -1
	}

	return slots
}
