// Command grizzly-lsp is a Language Server Protocol server for grizzly's
// Gherkin load-test feature files, plus standalone step-library tooling.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	commands := []*cli.Command{
		serveCommand(),
		installCommand(),
		rebuildInventoryCommand(),
		renderCommand(),
	}

	app := &cli.Command{
		Name:     "grizzly-lsp",
		Version:  version,
		Usage:    "Language server and step-library tooling for grizzly feature files",
		Commands: commands,
	}

	if err := app.Run(context.Background(), defaultToServe(os.Args, commands)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// defaultToServe inserts "serve" as the subcommand when args carries none
// of the registered command names, so `grizzly-lsp --stdio` behaves like
// `grizzly-lsp serve --stdio`.
func defaultToServe(args []string, commands []*cli.Command) []string {
	for _, a := range args[1:] {
		if a == "-h" || a == "--help" || a == "-v" || a == "--version" || a == "help" {
			return args
		}

		for _, c := range commands {
			if a == c.Name {
				return args
			}
		}
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], "serve")
	out = append(out, args[1:]...)

	return out
}
