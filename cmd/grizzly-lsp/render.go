package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Biometria-se/grizzly-lsp/analysis"
)

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a feature file's template tags and print the result",
		ArgsUsage: "<file>",
		Action:    runRender,
	}
}

func runRender(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("render: a feature file path is required")
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path comes from an explicit CLI argument
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	rendered, err := analysis.Render(path, string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		return cli.Exit("", 1)
	}

	fmt.Print(rendered)

	return nil
}
