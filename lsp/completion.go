package lsp

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp"
	"github.com/Biometria-se/grizzly-lsp/analysis"
)

// structuralKeywords get "<keyword>: " as insert text; the rest (step
// verbs) get a trailing space only.
var structuralKeywords = map[string]bool{
	"Feature": true, "Background": true, "Scenario": true,
	"Scenario Outline": true, "Scenario Template": true,
	"Examples": true, "Scenarios": true,
}

// Completion handles textDocument/completion requests.
func (s *Server) Completion(_ context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.logger.Debug("Completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	ds, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	doc := ds.currentDocument()
	line, col := int(params.Position.Line), int(params.Position.Character)

	if line < 0 || line >= len(doc.Lines) {
		return &protocol.CompletionList{}, nil
	}

	inv := s.store.Snapshot()
	cur := analysis.Classify(doc.Lines, inv, line, col)

	var items []protocol.CompletionItem

	switch cur.Kind {
	case analysis.CursorKeyword:
		items = s.completeKeywords(cur, line, col)
	case analysis.CursorStep:
		items = s.completeSteps(inv, cur, line, col)
	case analysis.CursorVariableRef:
		items = s.completeVariables(doc, cur, line, col)
	case analysis.CursorArgumentEnum:
		items = s.completeArgumentEnum(cur, line)
	case analysis.CursorOutside:
		// no completions at this position
	}

	return &protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (s *Server) completeKeywords(cur analysis.Cursor, line, col int) []protocol.CompletionItem {
	rng := protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(col - len(cur.Prefix))}, //nolint:gosec
		End:   protocol.Position{Line: uint32(line), Character: uint32(col)},                    //nolint:gosec
	}

	items := make([]protocol.CompletionItem, 0, len(cur.LegalKeywords))

	for _, kw := range cur.LegalKeywords {
		if !analysis.FuzzyMatch(kw, cur.Prefix) {
			continue
		}

		insert := kw + " "
		if structuralKeywords[kw] {
			insert = kw + ": "
		}

		items = append(items, protocol.CompletionItem{
			Label:    kw,
			Kind:     protocol.CompletionItemKindKeyword,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: insert},
		})
	}

	return items
}

// completeSteps ranks candidates whose clean expression begins with the
// normalized partial text: an exact match first, then registration order;
// within one definition, variants are offered in ascending variant index.
func (s *Server) completeSteps(inv *grizzly.Inventory, cur analysis.Cursor, line, col int) []protocol.CompletionItem {
	normalized := grizzly.NormalizeText(cur.Text)
	candidates := append([]*grizzly.StepDefinition{}, inv.Candidates(cur.Verb, normalized)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		iExact := grizzly.NormalizeText(candidates[i].CleanExpression) == normalized
		jExact := grizzly.NormalizeText(candidates[j].CleanExpression) == normalized

		return iExact && !jExact
	})

	rng := protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(cur.VerbEndColumn)}, //nolint:gosec
		End:   protocol.Position{Line: uint32(line), Character: uint32(col)},               //nolint:gosec
	}

	var items []protocol.CompletionItem

	for _, def := range candidates {
		exact := grizzly.NormalizeText(def.CleanExpression) == normalized

		for i, label := range def.Pattern.ExpressionVariants {
			items = append(items, protocol.CompletionItem{
				Label:            label,
				Kind:             protocol.CompletionItemKindFunction,
				Detail:           string(def.Keyword),
				Documentation:    &protocol.MarkupContent{Kind: protocol.Markdown, Value: def.Help},
				InsertTextFormat: protocol.InsertTextFormatSnippet,
				TextEdit:         &protocol.TextEdit{Range: rng, NewText: snippetInsertText(label)},
				SortText:         sortKey(exact, def.RegistrationIndex, i),
			})
		}
	}

	return items
}

// snippetInsertText replaces each empty quoted slot `""` in label, in
// left-to-right order, with a numbered tab stop `"$n"`.
func snippetInsertText(label string) string {
	var b strings.Builder

	n := 1

	for i := 0; i < len(label); {
		if strings.HasPrefix(label[i:], `""`) {
			b.WriteString(`"$`)
			b.WriteString(strconv.Itoa(n))
			b.WriteByte('"')
			n++
			i += 2

			continue
		}

		b.WriteByte(label[i])
		i++
	}

	return b.String()
}

// sortKey encodes ranking rule (a) (exact match before substring match) as
// a leading rank digit, then registrationIndex and variantIndex
// zero-padded so lexicographic SortText order matches numeric order once
// an inventory holds more than a handful of step definitions. LSP clients
// sort by SortText as a string; an unpadded "10" < "9" mistake here would
// silently reorder completions in any workspace with ten or more steps.
func sortKey(exact bool, registrationIndex, variantIndex int) string {
	rank := 1
	if exact {
		rank = 0
	}

	return fmt.Sprintf("%d%08d%04d", rank, registrationIndex, variantIndex)
}

func (s *Server) completeVariables(doc *analysis.Document, cur analysis.Cursor, line, col int) []protocol.CompletionItem {
	vars := analysis.ExtractVariables(doc, s.config.VariablePattern)

	suffix := ""
	if lineText := doc.Lines[line]; col <= len(lineText) {
		suffix = lineText[col:]
	}

	rng := protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(col - len(cur.VariablePrefix))}, //nolint:gosec
		End:   protocol.Position{Line: uint32(line), Character: uint32(col)},                           //nolint:gosec
	}

	prefix := strings.ToLower(cur.VariablePrefix)

	var items []protocol.CompletionItem

	for _, v := range vars {
		if !strings.HasPrefix(strings.ToLower(v), prefix) {
			continue
		}

		items = append(items, protocol.CompletionItem{
			Label:    v,
			Kind:     protocol.CompletionItemKindVariable,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: variableInsertText(v, suffix)},
		})
	}

	return items
}

// variableInsertText appends only what doesn't already follow the cursor:
// the variable name always, the closing "}}" unless it's already there, and
// a closing quote unless one follows the (possibly already-present) braces.
func variableInsertText(name, suffix string) string {
	trimmed := strings.TrimLeft(suffix, " \t")

	hasCloseBraces := strings.HasPrefix(trimmed, "}}")

	afterBraces := trimmed
	if hasCloseBraces {
		afterBraces = trimmed[2:]
	}

	hasQuote := strings.HasPrefix(afterBraces, `"`)

	var b strings.Builder

	b.WriteByte(' ')
	b.WriteString(name)

	if !hasCloseBraces {
		b.WriteString(" }}")
	}

	if !hasQuote {
		b.WriteByte('"')
	}

	return b.String()
}

func (s *Server) completeArgumentEnum(cur analysis.Cursor, line int) []protocol.CompletionItem {
	rng := protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(cur.SlotStart)}, //nolint:gosec
		End:   protocol.Position{Line: uint32(line), Character: uint32(cur.SlotEnd)},    //nolint:gosec
	}

	items := make([]protocol.CompletionItem, 0, len(cur.Alternatives))

	for _, alt := range cur.Alternatives {
		items = append(items, protocol.CompletionItem{
			Label:    alt,
			Kind:     protocol.CompletionItemKindEnumMember,
			TextEdit: &protocol.TextEdit{Range: rng, NewText: alt},
		})
	}

	return items
}
