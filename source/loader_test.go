package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Biometria-se/grizzly-lsp"
)

func TestParseHarvestStreamDefinitions(t *testing.T) {
	stream := strings.Join([]string{
		`{"keyword":"given","pattern":"set context variable \"{name}\" to \"{value}\"","help":"sets a variable","file":"steps.py","line":12}`,
		`{"keyword":"when","pattern":"to endpoint \"{method:Method}\"","help":"","file":"steps.py","line":40,"alternatives":{"Method":["get","post"]}}`,
	}, "\n")

	result := parseHarvestStream(strings.NewReader(stream), func(p string) string { return "/work/" + p })

	require.Empty(t, result.Warnings)
	require.Len(t, result.Definitions, 2)
	require.Equal(t, grizzly.Given, result.Definitions[0].Keyword)
	require.Equal(t, "/work/steps.py", result.Definitions[0].SourceLocation.Path)
	require.Equal(t, 12, result.Definitions[0].SourceLocation.Line)
	require.Equal(t, []string{"get", "post"}, result.ParseTypes["Method"])
}

func TestParseHarvestStreamSkipsMalformedLinesAsWarnings(t *testing.T) {
	stream := strings.Join([]string{
		`not json at all`,
		`{"keyword":"given","pattern":"ask for value of variable \"{name}\"","help":""}`,
	}, "\n")

	result := parseHarvestStream(strings.NewReader(stream), func(p string) string { return p })

	require.Len(t, result.Warnings, 1)
	require.Len(t, result.Definitions, 1)
}

func TestIsModuleNotFound(t *testing.T) {
	require.True(t, isModuleNotFound(errAssertion{"ModuleNotFoundError: No module named 'grizzly'"}))
	require.False(t, isModuleNotFound(errAssertion{"AttributeError: boom"}))
}

type errAssertion struct{ msg string }

func (e errAssertion) Error() string { return e.msg }

func TestResolvePathPrefersWorkspaceRelativeFileWhenItExists(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "steps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "steps", "http.py"), []byte("# steps"), 0o644))

	loader := &Loader{logger: zap.NewNop(), workspaceRoot: workspace, cfg: grizzly.DefaultConfig()}

	got := loader.resolvePath("steps/http.py")
	require.Equal(t, filepath.Join(workspace, "steps", "http.py"), got)
}

func TestResolvePathFallsBackToIndexWhenRelativePathMissing(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "vendored"), 0o755))
	actual := filepath.Join(workspace, "vendored", "http.py")
	require.NoError(t, os.WriteFile(actual, []byte("# steps"), 0o644))

	idx, err := BuildIndex(workspace, nil)
	require.NoError(t, err)

	loader := &Loader{logger: zap.NewNop(), workspaceRoot: workspace, cfg: grizzly.DefaultConfig(), index: idx}

	// The harvester reports a site-packages-relative path that doesn't
	// exist under the workspace; the index resolves it by base name.
	got := loader.resolvePath("site-packages/grizzly_steps/http.py")
	require.Equal(t, actual, got)
}
