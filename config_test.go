package grizzly

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfigWalksUpToNearestFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	content := "step_module: grizzly.steps\nuse_virtual_environment: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, configFileName), []byte(content), 0o644))

	cfg, err := FindConfig(nested)
	require.NoError(t, err)
	require.Equal(t, "grizzly.steps", cfg.StepModule)
	require.True(t, cfg.UseVirtualEnvironment)
}

func TestFindConfigFallsBackToDefault(t *testing.T) {
	cfg, err := FindConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().VariablePattern, cfg.VariablePattern)
}

func TestConfigMergeOverridesOnlySetFields(t *testing.T) {
	base := DefaultConfig()
	base.StepModule = "grizzly.steps"

	override := &Config{PipExtraIndexURL: "https://example.test/simple"}
	present := map[string]bool{"pip_extra_index_url": true}

	merged := base.Merge(override, present)
	require.Equal(t, "grizzly.steps", merged.StepModule)
	require.Equal(t, "https://example.test/simple", merged.PipExtraIndexURL)
}

func TestConfigMergeAppliesExplicitFalseOverBooleanField(t *testing.T) {
	base := DefaultConfig()
	base.DiagnosticsOnSaveOnly = true
	base.UseVirtualEnvironment = true

	data := []byte(`{"diagnostics_on_save_only": false}`)

	override := &Config{}
	require.NoError(t, json.Unmarshal(data, override))

	present, err := PresentFields(data)
	require.NoError(t, err)

	merged := base.Merge(override, present)
	assert.False(t, merged.DiagnosticsOnSaveOnly, "an explicit false from the client must win over the on-disk true")
	assert.True(t, merged.UseVirtualEnvironment, "a field the client never sent must keep the on-disk value")
}
