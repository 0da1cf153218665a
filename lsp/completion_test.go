package lsp_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"go.lsp.dev/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Biometria-se/grizzly-lsp"
)

func openDoc(t *testing.T, server interface {
	DidOpen(context.Context, *protocol.DidOpenTextDocumentParams) error
}, uri, text string) {
	t.Helper()

	err := server.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentURI(uri), Version: 1, Text: text},
	})
	require.NoError(t, err)
}

func TestCompletionEmptyBufferOffersFeatureOnly(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})

	openDoc(t, server, "file:///empty.feature", "")

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///empty.feature"},
			Position:     protocol.Position{Line: 0, Character: 0},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Items, 1)

	assert.Equal(t, "Feature", result.Items[0].Label)
	assert.Equal(t, "Feature: ", result.Items[0].TextEdit.NewText)
}

func TestCompletionKeywordFuzzyNarrowing(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})

	text := "Feature: demo\n  Scenario: s\n    en"
	openDoc(t, server, "file:///f.feature", text)

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: 6},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	labels := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		labels = append(labels, item.Label)
	}

	assert.Contains(t, labels, "Given")
	assert.Contains(t, labels, "When")
	assert.Contains(t, labels, "Then")
	assert.NotContains(t, labels, "And", "\"And\" has no 'e' so it can't fuzzy-match \"en\"")
	assert.NotContains(t, labels, "But", "\"But\" has no 'e' or 'n' so it can't fuzzy-match \"en\"")
}

func TestCompletionStepOffersSnippetFunctionItems(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	lastLine := "    Given I send a "
	text := "Feature: demo\n  Scenario: s\n" + lastLine
	openDoc(t, server, "file:///f.feature", text)

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(len(lastLine))},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Items)

	assert.Equal(t, protocol.CompletionItemKindFunction, result.Items[0].Kind)
	assert.Equal(t, protocol.InsertTextFormatSnippet, result.Items[0].InsertTextFormat)
}

func TestCompletionStepSortTextOrdersNumericallyNotLexicographically(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})

	// Register 11 defs sharing a prefix, so registration indexes span the
	// single-to-double-digit boundary where an unpadded SortText would
	// sort "10" before "2".
	raw := make([]grizzly.RawDefinition, 11)
	for i := range raw {
		raw[i] = grizzly.RawDefinition{
			Keyword:    grizzly.Given,
			Expression: fmt.Sprintf(`I do thing number %d`, i),
		}
	}

	seedInventory(t, server, raw)

	lastLine := "    Given I do thing "
	text := "Feature: demo\n  Scenario: s\n" + lastLine
	openDoc(t, server, "file:///f.feature", text)

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(len(lastLine))},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 11)

	sortTexts := make([]string, len(result.Items))
	for i, item := range result.Items {
		sortTexts[i] = item.SortText
	}

	sorted := append([]string{}, sortTexts...)
	sort.Strings(sorted)

	assert.Equal(t, sortTexts, sorted, "SortText must already be in string-sort order matching registration order")
}

func TestCompletionStepSnippetNumbersEachEmptyQuotedSlot(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	lastLine := "    Given I send a "
	text := "Feature: demo\n  Scenario: s\n" + lastLine
	openDoc(t, server, "file:///f.feature", text)

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(len(lastLine))},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Items)

	found := false

	for _, item := range result.Items {
		if item.TextEdit.NewText == `I send a "get" request to "$1"` {
			found = true
		}
	}

	assert.True(t, found, "expected a snippet with a $1 tab stop in the empty slot, got %v", result.Items)
}

func TestCompletionVariableReferenceAppendsClosingBracesAndQuote(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	text := "Feature: demo\n" +
		"  Scenario: s\n" +
		"    Given the value for variable \"foo\" is 1\n" +
		"    Given the value for variable \"bar\" is 2\n" +
		"    Given I send a \"GET\" request to \"{{ fo"

	openDoc(t, server, "file:///f.feature", text)

	lines := splitLines(text)
	lastLine := lines[len(lines)-1]

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: uint32(len(lines) - 1), Character: uint32(len(lastLine))},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Items)

	var got *protocol.CompletionItem

	for i, item := range result.Items {
		if item.Label == "foo" {
			got = &result.Items[i]
		}
	}

	require.NotNil(t, got, "expected 'foo' variable completion, got %v", result.Items)
	assert.Equal(t, ` foo }}"`, got.TextEdit.NewText)
}

func TestCompletionArgumentEnumListsPlaceholderAlternatives(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	line := "    Given I send a \"GET\" request to \"https://example.com\""
	text := "Feature: demo\n  Scenario: s\n" + line

	openDoc(t, server, "file:///f.feature", text)

	col := indexOf(line, "GET") + 1 // cursor between G and E, inside the quotes

	result, err := server.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(col)},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	labels := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		labels = append(labels, item.Label)
		assert.Equal(t, protocol.CompletionItemKindEnumMember, item.Kind)
	}

	assert.Contains(t, labels, "get")
	assert.Contains(t, labels, "post")
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}

	lines = append(lines, s[start:])

	return lines
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}

	return -1
}
