package lsp

import (
	"context"
	"os"
	"path/filepath"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp"
	"github.com/Biometria-se/grizzly-lsp/analysis"
)

// Definition handles textDocument/definition requests.
func (s *Server) Definition(_ context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	s.logger.Debug("Definition",
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
		return nil, nil //nolint:nilnil
	}

	verb, text, verbEnd, ok := analysis.StepText(doc.Lines, line)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	inv := s.store.Snapshot()

	def, ok := inv.Lookup(verb, text)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	if loc := s.payloadDefinition(def, text, col-verbEnd); loc != nil {
		return []protocol.Location{*loc}, nil
	}

	if def.SourceLocation != nil {
		return []protocol.Location{stepDefinitionLocation(def.SourceLocation)}, nil
	}

	return nil, nil //nolint:nilnil
}

func stepDefinitionLocation(loc *grizzly.SourceLocation) protocol.Location {
	line := uint32(max(0, loc.Line-1)) //nolint:gosec

	return protocol.Location{
		URI: PathToURI(loc.Path),
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: 0},
			End:   protocol.Position{Line: line, Character: 0},
		},
	}
}

// payloadDefinition resolves a quoted argument at byteOffset (relative to
// the step text, after the verb) as a payload file reference, if the
// matched definition's corresponding placeholder is marked FileRef and the
// file exists under the configured payload directory.
func (s *Server) payloadDefinition(def *grizzly.StepDefinition, text string, byteOffset int) *protocol.Location {
	if byteOffset < 0 {
		return nil
	}

	quotedPlaceholders := make([]grizzly.Placeholder, 0)

	for _, ph := range def.Pattern.Placeholders {
		if ph.Quoted {
			quotedPlaceholders = append(quotedPlaceholders, ph)
		}
	}

	slots := analysis.QuotedSlots(text)

	for i, slot := range slots {
		if byteOffset < slot[0] || byteOffset > slot[1] {
			continue
		}

		if i >= len(quotedPlaceholders) || !quotedPlaceholders[i].FileRef {
			return nil
		}

		value := text[slot[0]:slot[1]]
		fullPath := filepath.Join(s.workspaceRoot, s.config.PayloadDir, value)

		if _, err := os.Stat(fullPath); err != nil {
			return nil
		}

		return &protocol.Location{
			URI: PathToURI(fullPath),
			Range: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 0, Character: 0},
			},
		}
	}

	return nil
}
