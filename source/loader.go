// Package source implements the Source Loader: it provisions the
// workspace's Python environment, runs an embedded harvester script inside
// it, and converts what the harvester reports into the raw definitions the
// step inventory normalizes.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp"
	"github.com/Biometria-se/grizzly-lsp/progress"
)

// Loader resolves and imports a workspace's step-definition library and
// harvests its registered patterns.
type Loader struct {
	logger        *zap.Logger
	workspaceRoot string
	cfg           *grizzly.Config
	// Timeout bounds how long environment preparation and harvesting may
	// take together. Zero means no timeout.
	Timeout time.Duration

	index *Index
}

// New returns a Loader for the given workspace and configuration.
func New(logger *zap.Logger, workspaceRoot string, cfg *grizzly.Config) *Loader {
	return &Loader{logger: logger, workspaceRoot: workspaceRoot, cfg: cfg, Timeout: 2 * time.Minute}
}

// harvestLine is one JSON object the embedded harvester script prints per
// registered step, one per line on stdout.
type harvestLine struct {
	Keyword      string              `json:"keyword"`
	Pattern      string              `json:"pattern"`
	Help         string              `json:"help"`
	File         string              `json:"file"`
	Line         int                 `json:"line"`
	Alternatives map[string][]string `json:"alternatives"`
	Validators   map[string]string   `json:"validators"`
}

// Result is everything one Load call produced: the raw definitions ready
// for Inventory.Rebuild, plus any parse-type alternatives the harvester
// reported for the registry, and malformed-line warnings that did not
// abort the load.
type Result struct {
	Definitions []grizzly.RawDefinition
	ParseTypes  map[string][]string
	Warnings    []error
}

// Load provisions the environment (if configured to), runs the harvester,
// and parses its output. reporter receives human-readable progress steps;
// pass progress.Noop{} if there is nowhere to show them.
func (l *Loader) Load(ctx context.Context, reporter progress.Reporter) (*Result, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)

		defer cancel()
	}

	interpreter, err := l.ensureEnvironment(ctx, reporter)
	if err != nil {
		return nil, &grizzly.SourceLoadError{Cause: grizzly.CauseInstallFailed, Module: l.cfg.StepModule, Wrapped: err}
	}

	reporter.Step(fmt.Sprintf("importing %s", l.cfg.StepModule))

	result, err := l.harvest(ctx, interpreter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &grizzly.SourceLoadError{Cause: grizzly.CauseTimeout, Module: l.cfg.StepModule, Wrapped: ctx.Err()}
		}

		cause := grizzly.CauseModuleRaised
		if isModuleNotFound(err) {
			cause = grizzly.CauseModuleNotFound
		}

		return nil, &grizzly.SourceLoadError{Cause: cause, Module: l.cfg.StepModule, Wrapped: err}
	}

	reporter.Step(fmt.Sprintf("harvested %d step definitions", len(result.Definitions)))

	return result, nil
}

// ensureEnvironment provisions a virtual environment under the workspace
// when configured to, and returns the interpreter to invoke the harvester
// with. With UseVirtualEnvironment unset, the ambient "python3" is used.
func (l *Loader) ensureEnvironment(ctx context.Context, reporter progress.Reporter) (string, error) {
	if !l.cfg.UseVirtualEnvironment {
		return "python3", nil
	}

	venvDir := filepath.Join(l.workspaceRoot, ".grizzly-venv")
	interpreter := filepath.Join(venvDir, "bin", "python")

	if runtime.GOOS == "windows" {
		interpreter = filepath.Join(venvDir, "Scripts", "python.exe")
	}

	if _, err := os.Stat(interpreter); err == nil {
		return interpreter, nil
	}

	reporter.Step("creating virtual environment")

	if err := runLogged(ctx, l.logger, "python3", "-m", "venv", venvDir); err != nil {
		return "", fmt.Errorf("create venv: %w", err)
	}

	reporter.Step("installing step library")

	args := []string{"-m", "pip", "install", "--quiet", l.cfg.StepModule}
	if l.cfg.PipExtraIndexURL != "" {
		args = append(args, "--extra-index-url", l.cfg.PipExtraIndexURL)
	}

	if err := runLogged(ctx, l.logger, interpreter, args...); err != nil {
		return "", fmt.Errorf("pip install: %w", err)
	}

	return interpreter, nil
}

func runLogged(ctx context.Context, logger *zap.Logger, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return err
	}

	err := cmd.Wait()
	logger.Debug("subprocess finished", zap.String("cmd", name), zap.Strings("args", args), zap.Error(err))

	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out.String())
	}

	return nil
}

// harvest runs the embedded Python script inside interpreter and parses
// its stdout, one JSON object per line.
func (l *Loader) harvest(ctx context.Context, interpreter string) (*Result, error) {
	if idx, err := BuildIndex(l.workspaceRoot, l.cfg.FileIgnorePatterns); err == nil {
		l.index = idx
	} else {
		l.logger.Debug("workspace index build failed, source-location fallback disabled", zap.Error(err))
	}

	cmd := exec.CommandContext(ctx, interpreter, "-c", harvesterScript, l.cfg.StepModule)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	result := parseHarvestStream(stdout, l.resolvePath)

	waitErr := cmd.Wait()

	if waitErr != nil {
		return nil, fmt.Errorf("%w: %s", waitErr, stderr.String())
	}

	return result, nil
}

// parseHarvestStream reads newline-delimited harvestLine JSON objects from
// r and converts them into a Result. Malformed lines become Warnings
// rather than aborting the read, since one bad line from the harvester
// shouldn't discard everything harvested before it.
func parseHarvestStream(r io.Reader, resolvePath func(string) string) *Result {
	result := &Result{ParseTypes: make(map[string][]string)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var hl harvestLine
		if err := json.Unmarshal(line, &hl); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("malformed harvester line %q: %w", string(line), err))
			continue
		}

		def := grizzly.RawDefinition{
			Keyword:    grizzly.Keyword(strings.ToLower(hl.Keyword)),
			Expression: hl.Pattern,
			Help:       hl.Help,
			Validators: hl.Validators,
		}

		if hl.File != "" {
			def.SourceLocation = &grizzly.SourceLocation{Path: resolvePath(hl.File), Line: hl.Line}
		}

		result.Definitions = append(result.Definitions, def)

		for typeName, alts := range hl.Alternatives {
			result.ParseTypes[typeName] = alts
		}
	}

	return result
}

// resolvePath turns a harvester-reported file into an absolute path,
// resolving it against the workspace root when it isn't already absolute.
// If the result doesn't exist on disk, falls back to a unique workspace
// match by base name (the step library installed into a virtual
// environment outside the workspace root, say), via l.index.
func (l *Loader) resolvePath(path string) string {
	resolved := path
	if !filepath.IsAbs(path) {
		resolved = filepath.Join(l.workspaceRoot, path)
	}

	if _, err := os.Stat(resolved); err == nil {
		return resolved
	}

	if l.index != nil {
		if match, ok := l.index.Resolve(filepath.Base(path)); ok {
			return match
		}
	}

	return resolved
}

func isModuleNotFound(err error) bool {
	return strings.Contains(err.Error(), "ModuleNotFoundError") || strings.Contains(err.Error(), "No module named")
}

// harvesterScript imports the configured step module (registering its
// steps as a side effect) and dumps the in-process step registry as
// newline-delimited JSON. It expects grizzly's step library to expose a
// conventional "grizzly.steps.registry" with Given/When/Then decorators
// recording (pattern, func) pairs, mirroring behave/cucumber-style
// registries.
const harvesterScript = `
import importlib, inspect, json, sys

module_name = sys.argv[1]
module = importlib.import_module(module_name)

registry = getattr(module, "step_registry", None)
if registry is None:
    from grizzly.steps import registry  # fall back to the grizzly package's own registry

for keyword in ("given", "when", "then"):
    for pattern, func in registry.get(keyword, {}).items():
        try:
            source_file = inspect.getsourcefile(func) or ""
            _, line = inspect.getsourcelines(func)
        except (TypeError, OSError):
            source_file, line = "", 0

        print(json.dumps({
            "keyword": keyword,
            "pattern": pattern,
            "help": inspect.getdoc(func) or "",
            "file": source_file,
            "line": line,
            "alternatives": getattr(func, "grizzly_alternatives", {}),
            "validators": getattr(func, "grizzly_validators", {}),
        }))
`
