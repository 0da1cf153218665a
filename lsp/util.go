package lsp

import (
	"net/url"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/Biometria-se/grizzly-lsp"
)

// spanToRange converts a grizzly.Span to an LSP protocol.Range.
// grizzly uses 1-based line/column, LSP uses 0-based.
func spanToRange(span grizzly.Span) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(max(0, span.Start.Line-1)),   //nolint:gosec // G115: values are small line numbers
			Character: uint32(max(0, span.Start.Column-1)), //nolint:gosec // G115: values are small column numbers
		},
		End: protocol.Position{
			Line:      uint32(max(0, span.End.Line-1)),   //nolint:gosec // G115: values are small line numbers
			Character: uint32(max(0, span.End.Column-1)), //nolint:gosec // G115: values are small column numbers
		},
	}
}

// URIToPath converts a document URI to a file system path.
func URIToPath(uri protocol.DocumentURI) string {
	u, err := url.Parse(string(uri))
	if err != nil {
		return strings.TrimPrefix(string(uri), "file://")
	}

	if u.Scheme == "file" {
		return u.Path
	}

	return string(uri)
}

// PathToURI converts a file system path to a document URI.
func PathToURI(path string) protocol.DocumentURI {
	return protocol.DocumentURI("file://" + path)
}
