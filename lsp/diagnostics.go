package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp/analysis"
)

// publishDiagnostics converts a Diagnostics Engine run into LSP form and
// sends it to the client.
func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, doc *analysis.Document) {
	diagnostics := make([]protocol.Diagnostic, 0, len(doc.Diagnostics))

	for _, d := range doc.Diagnostics {
		diagnostics = append(diagnostics, convertDiagnostic(d))
	}

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     uint32(doc.Version), //nolint:gosec // LSP version numbers are always non-negative
		Diagnostics: diagnostics,
	})
	if err != nil {
		s.logger.Error("failed to publish diagnostics", zap.Error(err))
	}
}

func convertDiagnostic(d analysis.Diagnostic) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    spanToRange(d.Span),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   "grizzly",
		Message:  d.Message,
	}
}

func convertSeverity(sev analysis.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch sev {
	case analysis.SeverityError:
		return protocol.DiagnosticSeverityError
	case analysis.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case analysis.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	case analysis.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}
