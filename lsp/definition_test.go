package lsp_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.lsp.dev/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionOnStepResolvesSourceLocation(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	line := "    Given I send a \"GET\" request to \"https://example.com\""
	text := "Feature: demo\n  Scenario: s\n" + line

	openDoc(t, server, "file:///f.feature", text)

	locations, err := server.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(indexOf(line, "request to"))},
		},
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)

	assert.Equal(t, protocol.DocumentURI("file://"+httpStepsPath), locations[0].URI)
}

func TestDefinitionOnPayloadArgumentResolvesExistingFile(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	payloadDir := filepath.Join(workspace, "features", "requests")
	require.NoError(t, os.MkdirAll(payloadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(payloadDir, "orders.json"), []byte(`{}`), 0o644))

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{RootURI: protocol.DocumentURI("file://" + workspace)})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})

	server.Registry().MarkPayloadType("Payload")
	seedInventory(t, server, httpStepDefinitions())

	line := `    Given I load payload "orders.json"`
	text := "Feature: demo\n  Scenario: s\n" + line

	openDoc(t, server, "file:///f.feature", text)

	locations, err := server.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(indexOf(line, "orders"))},
		},
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)

	assert.Equal(t, protocol.DocumentURI("file://"+filepath.Join(payloadDir, "orders.json")), locations[0].URI)
}

func TestDefinitionOnPayloadArgumentMissingFileReturnsStepLocation(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{RootURI: protocol.DocumentURI("file://" + workspace)})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})

	server.Registry().MarkPayloadType("Payload")
	seedInventory(t, server, httpStepDefinitions())

	line := `    Given I load payload "missing.json"`
	text := "Feature: demo\n  Scenario: s\n" + line

	openDoc(t, server, "file:///f.feature", text)

	locations, err := server.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(indexOf(line, "missing"))},
		},
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)

	// Falls back to the step definition's own registration site, since the
	// file-under-cursor doesn't exist.
	assert.Equal(t, protocol.DocumentURI("file://"+httpStepsPath), locations[0].URI)
}

func TestDefinitionOnUnmatchedStepReturnsNil(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, _ = server.Initialize(ctx, &protocol.InitializeParams{})
	_ = server.Initialized(ctx, &protocol.InitializedParams{})
	seedInventory(t, server, httpStepDefinitions())

	line := "    Given nobody registered this step"
	text := "Feature: demo\n  Scenario: s\n" + line

	openDoc(t, server, "file:///f.feature", text)

	locations, err := server.Definition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///f.feature"},
			Position:     protocol.Position{Line: 2, Character: uint32(len(line) - 1)},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, locations)
}
