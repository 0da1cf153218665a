package main

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// logFileName is the optional log sink inside the workspace, used whenever
// stderr isn't a terminal (an editor-spawned process, or output piped/
// redirected on the command line).
const logFileName = "grizzly-ls.log"

// newLogger builds a development-style console zap.Logger writing to
// stderr when attached to a terminal, and to workspace/grizzly-ls.log
// otherwise, matching the teacher's cmd/scaf-lsp/main.go console setup with
// the TTY branch this module adds on top of it.
func newLogger(level zap.AtomicLevel, workspace string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.ErrorOutputPaths = []string{"stderr"}
	config.Encoding = "console"
	config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	config.Level = level

	if isatty.IsTerminal(os.Stderr.Fd()) {
		config.OutputPaths = []string{"stderr"}
	} else {
		config.OutputPaths = []string{filepath.Join(workspace, logFileName)}
	}

	return config.Build()
}
