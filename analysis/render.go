package analysis

import (
	"github.com/flosch/pongo2/v6"

	"github.com/Biometria-se/grizzly-lsp"
)

// Render preprocesses text through the template engine, expanding any
// template-tag blocks before the result is handed to the Gherkin parser.
// path is used only to label a RenderError.
func Render(path, text string) (string, error) {
	tpl, err := pongo2.FromString(text)
	if err != nil {
		return "", &grizzly.RenderError{Path: path, Wrapped: err}
	}

	out, err := tpl.Execute(pongo2.Context{})
	if err != nil {
		return "", &grizzly.RenderError{Path: path, Wrapped: err}
	}

	return out, nil
}
