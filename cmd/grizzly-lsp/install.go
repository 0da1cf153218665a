package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Biometria-se/grizzly-lsp"
	"github.com/Biometria-se/grizzly-lsp/progress"
	"github.com/Biometria-se/grizzly-lsp/source"
)

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Provision the workspace's step-library environment",
		ArgsUsage: "[workspace]",
		Action:    runInstall,
	}
}

func rebuildInventoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "rebuild-inventory",
		Usage:     "Re-harvest the step library and print a summary",
		ArgsUsage: "[workspace]",
		Action:    runRebuildInventory,
	}
}

func runInstall(ctx context.Context, cmd *cli.Command) error {
	workspace, cfg, logger, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reporter := newCLIReporter("grizzly-lsp: installing step library")

	loader := source.New(logger, workspace, cfg)

	result, err := loader.Load(ctx, reporter)
	reporter.Done(err)

	if err != nil {
		return fmt.Errorf("install: %w", err)
	}

	fmt.Printf("installed %s: %d step definitions harvested\n", cfg.StepModule, len(result.Definitions))

	return nil
}

func runRebuildInventory(ctx context.Context, cmd *cli.Command) error {
	workspace, cfg, logger, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reporter := newCLIReporter("grizzly-lsp: rebuilding step inventory")

	loader := source.New(logger, workspace, cfg)

	result, err := loader.Load(ctx, reporter)
	if err != nil {
		reporter.Done(err)
		return fmt.Errorf("rebuild-inventory: %w", err)
	}

	registry := grizzly.DefaultParseTypes()
	for typeName, alts := range result.ParseTypes {
		registry.Register(typeName, alts)
	}

	store := grizzly.NewStore()

	inv, err := store.Rebuild(ctx, result.Definitions, registry)
	if inv == nil {
		reporter.Done(err)
		return fmt.Errorf("normalizing step definitions: %w", err)
	}

	reporter.Done(nil)

	// Malformed patterns are non-fatal: they are reported alongside the
	// harvester's malformed-line warnings.
	printInventorySummary(inv, append(result.Warnings, multierr.Errors(err)...))

	return nil
}

func printInventorySummary(inv *grizzly.Inventory, warnings []error) {
	for _, verb := range []grizzly.Keyword{grizzly.Given, grizzly.When, grizzly.Then} {
		fmt.Printf("%-5s %d step definitions\n", verb, len(inv.All(verb)))
	}

	if len(warnings) > 0 {
		fmt.Printf("\n%d warning(s):\n", len(warnings))

		for _, w := range warnings {
			fmt.Printf("  %v\n", w)
		}
	}
}

// loadWorkspace resolves the workspace directory (argument or cwd) and its
// merged configuration, and builds a logger suited to a standalone run.
func loadWorkspace(cmd *cli.Command) (workspace string, cfg *grizzly.Config, logger *zap.Logger, err error) {
	workspace = cmd.Args().First()
	if workspace == "" {
		workspace, err = os.Getwd()
		if err != nil {
			return "", nil, nil, fmt.Errorf("resolving workspace: %w", err)
		}
	}

	cfg, err = grizzly.FindConfig(workspace)
	if err != nil {
		return "", nil, nil, fmt.Errorf("loading .grizzly.yaml: %w", err)
	}

	logger, err = newLogger(zap.NewAtomicLevelAt(zapcore.InfoLevel), workspace)
	if err != nil {
		return "", nil, nil, fmt.Errorf("building logger: %w", err)
	}

	return workspace, cfg, logger, nil
}

// newCLIReporter picks a progress.Reporter suited to the current terminal:
// a bubbletea spinner view when stdout is a TTY, a plain log line per step
// otherwise (CI, piped output).
func newCLIReporter(title string) progress.Reporter {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return progress.NewTUI(title)
	}

	return plainReporter{title: title}
}

// plainReporter writes one line per step to stdout, for non-interactive
// runs where a terminal UI would just be noise.
type plainReporter struct{ title string }

func (r plainReporter) Step(name string) { fmt.Printf("%s: %s\n", r.title, name) }

func (r plainReporter) Done(err error) {
	if err != nil {
		fmt.Printf("%s: failed: %v\n", r.title, err)
		return
	}

	fmt.Printf("%s: done\n", r.title)
}
