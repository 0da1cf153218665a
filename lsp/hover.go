package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp/analysis"
)

// Hover handles textDocument/hover requests.
func (s *Server) Hover(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	ds, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	doc := ds.currentDocument()
	line := int(params.Position.Line)

	if line < 0 || line >= len(doc.Lines) {
		return nil, nil //nolint:nilnil
	}

	verb, text, verbEnd, ok := analysis.StepText(doc.Lines, line)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	inv := s.store.Snapshot()

	def, ok := inv.Lookup(verb, text)
	if !ok || def.Help == "" {
		return nil, nil //nolint:nilnil
	}

	rng := protocol.Range{
		Start: protocol.Position{Line: uint32(line), Character: uint32(verbEnd)},            //nolint:gosec
		End:   protocol.Position{Line: uint32(line), Character: uint32(verbEnd + len(text))}, //nolint:gosec
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: def.Help,
		},
		Range: &rng,
	}, nil
}
