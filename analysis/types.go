package analysis

import "github.com/Biometria-se/grizzly-lsp"

// DiagnosticSeverity mirrors the LSP severity scale.
type DiagnosticSeverity int

const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Diagnostic is a structured problem report attached to a source range.
type Diagnostic struct {
	Span     grizzly.Span
	Severity DiagnosticSeverity
	Message  string
	Code     string
}
