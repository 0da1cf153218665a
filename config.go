package grizzly

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the workspace configuration snapshot, built from an optional
// on-disk .grizzly.yaml merged with whatever initializationOptions the
// editor sends. Fields set over LSP always win over the file.
type Config struct {
	StepModule            string   `yaml:"step_module" json:"step_module"`
	VariablePattern       []string `yaml:"variable_pattern" json:"variable_pattern"`
	UseVirtualEnvironment bool     `yaml:"use_virtual_environment" json:"use_virtual_environment"`
	PipExtraIndexURL      string   `yaml:"pip_extra_index_url" json:"pip_extra_index_url"`
	DiagnosticsOnSaveOnly bool     `yaml:"diagnostics_on_save_only" json:"diagnostics_on_save_only"`
	FileIgnorePatterns    []string `yaml:"file_ignore_patterns" json:"file_ignore_patterns"`
	PayloadTypes          []string `yaml:"payload_types" json:"payload_types"`
	// PayloadDir is the workspace-relative directory go-to-definition
	// resolves payload-like literal arguments against.
	PayloadDir string `yaml:"payload_dir" json:"payload_dir"`
	LogLevel   string `yaml:"log_level" json:"log_level"`

	QuickFix struct {
		StepImplTemplate string `yaml:"step_impl_template" json:"step_impl_template"`
	} `yaml:"quick_fix" json:"quick_fix"`
}

// DefaultConfig returns the configuration used when no .grizzly.yaml is
// present and the editor sends no initializationOptions.
func DefaultConfig() *Config {
	return &Config{
		VariablePattern: []string{`value for variable "([^"]+)" is`},
		PayloadDir:      "features/requests",
	}
}

const configFileName = ".grizzly.yaml"

// FindConfig walks upward from dir looking for a .grizzly.yaml, the way a
// repo-level dotfile is discovered: the nearest one wins. It returns
// DefaultConfig if none is found anywhere up to the filesystem root.
func FindConfig(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return LoadConfig(candidate)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return DefaultConfig(), nil
		}

		dir = parent
	}
}

// LoadConfig reads and parses a .grizzly.yaml file at path, applying it on
// top of DefaultConfig so unset fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PresentFields decodes a JSON initializationOptions payload into the keys
// actually present at its top level. A zero value in the decoded Config
// (e.g. a boolean explicitly sent as false) is otherwise indistinguishable
// from a field the client never mentioned, so Merge needs this to know
// which fields to apply rather than comparing against the zero value.
func PresentFields(data []byte) (map[string]bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(raw))
	for key := range raw {
		present[key] = true
	}

	return present, nil
}

// Merge returns a copy of cfg with every field named in present applied on
// top from override, the way initializationOptions override the on-disk
// file. present holds the yaml/json field names actually sent by the
// client (see PresentFields); a nil present applies every field whose
// value is non-zero, for callers merging a Config built without JSON
// (e.g. tests) rather than a real initializationOptions payload.
func (cfg *Config) Merge(override *Config, present map[string]bool) *Config {
	merged := *cfg

	set := func(key string, nonZero bool) bool {
		if present != nil {
			return present[key]
		}

		return nonZero
	}

	if set("step_module", override.StepModule != "") {
		merged.StepModule = override.StepModule
	}

	if set("variable_pattern", len(override.VariablePattern) > 0) {
		merged.VariablePattern = override.VariablePattern
	}

	if set("use_virtual_environment", override.UseVirtualEnvironment) {
		merged.UseVirtualEnvironment = override.UseVirtualEnvironment
	}

	if set("pip_extra_index_url", override.PipExtraIndexURL != "") {
		merged.PipExtraIndexURL = override.PipExtraIndexURL
	}

	if set("diagnostics_on_save_only", override.DiagnosticsOnSaveOnly) {
		merged.DiagnosticsOnSaveOnly = override.DiagnosticsOnSaveOnly
	}

	if set("file_ignore_patterns", len(override.FileIgnorePatterns) > 0) {
		merged.FileIgnorePatterns = override.FileIgnorePatterns
	}

	if set("payload_types", len(override.PayloadTypes) > 0) {
		merged.PayloadTypes = override.PayloadTypes
	}

	if set("payload_dir", override.PayloadDir != "") {
		merged.PayloadDir = override.PayloadDir
	}

	if set("log_level", override.LogLevel != "") {
		merged.LogLevel = override.LogLevel
	}

	if set("quick_fix", override.QuickFix.StepImplTemplate != "") {
		merged.QuickFix.StepImplTemplate = override.QuickFix.StepImplTemplate
	}

	return &merged
}
