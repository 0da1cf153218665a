// Package progress reports long-running install/rebuild work to whichever
// sink is driving the current command: an LSP $/progress stream when the
// server is embedded in an editor, or a terminal model when run from the
// standalone CLI. Callers never need to know which.
package progress

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Reporter receives named steps and a terminal error (or nil for success).
type Reporter interface {
	Step(name string)
	Done(err error)
}

// Noop discards every report, for callers that have no progress sink to
// report to.
type Noop struct{}

func (Noop) Step(string)  {}
func (Noop) Done(error) {}

// LSP reports progress over window/workDoneProgress notifications.
type LSP struct {
	ctx    context.Context
	client protocol.Client
	logger *zap.Logger
	token  protocol.ProgressToken
	title  string
}

// NewLSP begins a work-done progress session under title and returns a
// Reporter bound to it. Session-creation errors are logged, not returned:
// a progress UI is a courtesy, never a reason to fail the underlying work.
func NewLSP(ctx context.Context, client protocol.Client, logger *zap.Logger, title string) *LSP {
	token := *protocol.NewProgressToken(title)

	if err := client.WorkDoneProgressCreate(ctx, &protocol.WorkDoneProgressCreateParams{Token: token}); err != nil {
		logger.Debug("work done progress create failed", zap.Error(err))
	}

	r := &LSP{ctx: ctx, client: client, logger: logger, token: token, title: title}

	if err := client.Progress(ctx, &protocol.ProgressParams{
		Token: token,
		Value: &protocol.WorkDoneProgressBegin{
			Kind:  "begin",
			Title: title,
		},
	}); err != nil {
		logger.Debug("work done progress begin failed", zap.Error(err))
	}

	return r
}

func (r *LSP) Step(name string) {
	if err := r.client.Progress(r.ctx, &protocol.ProgressParams{
		Token: r.token,
		Value: &protocol.WorkDoneProgressReport{
			Kind:    "report",
			Message: name,
		},
	}); err != nil {
		r.logger.Debug("work done progress report failed", zap.Error(err))
	}
}

func (r *LSP) Done(err error) {
	msg := "done"
	if err != nil {
		msg = err.Error()
	}

	if perr := r.client.Progress(r.ctx, &protocol.ProgressParams{
		Token: r.token,
		Value: &protocol.WorkDoneProgressEnd{
			Kind:    "end",
			Message: msg,
		},
	}); perr != nil {
		r.logger.Debug("work done progress end failed", zap.Error(perr))
	}
}
