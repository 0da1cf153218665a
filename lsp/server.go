// Package lsp implements a Language Server Protocol server for Gherkin
// feature files backed by a Python load-test step library.
package lsp

import (
	"context"
	"encoding/json"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Biometria-se/grizzly-lsp"
	"github.com/Biometria-se/grizzly-lsp/analysis"
	"github.com/Biometria-se/grizzly-lsp/progress"
	"github.com/Biometria-se/grizzly-lsp/source"
)

// RebuildState tracks where the step inventory stands relative to the
// Source Loader, for surfacing to the editor (and the standalone CLI) as a
// status rather than a bare boolean.
type RebuildState int

const (
	RebuildIdle RebuildState = iota
	RebuildLoading
	RebuildReady
	RebuildFailed
)

func (s RebuildState) String() string {
	switch s {
	case RebuildLoading:
		return "loading"
	case RebuildReady:
		return "ready"
	case RebuildFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Server implements the LSP Server interface for grizzly feature files.
type Server struct {
	client protocol.Client
	logger *zap.Logger

	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*docState

	store    *grizzly.Store
	registry *grizzly.ParseTypeRegistry
	config   *grizzly.Config
	loader   *source.Loader

	workspaceRoot string
	initialized   bool
	shutdown      bool

	rebuildMu    sync.RWMutex
	rebuildState RebuildState
	lastError    error

	logLevel *zap.AtomicLevel
	embedded bool
}

// ServerOption configures optional Server behavior at construction time.
type ServerOption func(*Server)

// WithLogLevel lets a workspace's .grizzly.yaml log_level override the
// process-wide logger level set by --verbose, once Initialize has loaded it.
func WithLogLevel(level *zap.AtomicLevel) ServerOption {
	return func(s *Server) { s.logLevel = level }
}

// WithEmbedded marks the server as running under an editor that already
// provisions the step library's environment, so Initialize never attempts
// to create a virtual environment itself.
func WithEmbedded(embedded bool) ServerOption {
	return func(s *Server) { s.embedded = embedded }
}

// docState is one open document plus the cancellation handle for its most
// recently scheduled diagnostics run, so a new change can supersede it.
type docState struct {
	mu     sync.Mutex
	doc    *analysis.Document
	cancel context.CancelFunc
}

// NewServer creates a new LSP server.
func NewServer(client protocol.Client, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		client:    client,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*docState),
		store:     grizzly.NewStore(),
		registry:  grizzly.DefaultParseTypes(),
		config:    grizzly.DefaultConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initialize handles the initialize request.
func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize")

	switch {
	case params.RootURI != "":
		s.workspaceRoot = URIToPath(params.RootURI)
	case params.RootPath != "":
		s.workspaceRoot = params.RootPath
	}

	cfg, err := grizzly.FindConfig(s.workspaceRoot)
	if err != nil {
		s.logger.Warn("failed to load .grizzly.yaml, using defaults", zap.Error(err))
		cfg = grizzly.DefaultConfig()
	}

	if override, present := decodeInitializationOptions(params.InitializationOptions, s.logger); override != nil {
		cfg = cfg.Merge(override, present)
	}

	if s.embedded {
		cfg.UseVirtualEnvironment = false
	}

	s.config = cfg
	s.applyLogLevel(cfg.LogLevel)
	s.loader = source.New(s.logger, s.workspaceRoot, s.config)

	for _, typeName := range s.config.PayloadTypes {
		s.registry.MarkPayloadType(typeName)
	}

	go s.RebuildInventory(context.Background(), progress.NewLSP(ctx, s.client, s.logger, "grizzly: loading step library"))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"{", "\""},
				ResolveProvider:   false,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "grizzly-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// applyLogLevel overrides the process-wide logger level with the
// workspace's configured log_level, when the server was constructed with
// WithLogLevel. An unset or unrecognized level is left alone.
func (s *Server) applyLogLevel(level string) {
	if s.logLevel == nil || level == "" {
		return
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		s.logger.Warn("unrecognized log_level, ignoring", zap.String("log_level", level))
		return
	}

	s.logLevel.SetLevel(parsed)
}

// decodeInitializationOptions re-marshals the editor-supplied
// initializationOptions (an untyped any under go.lsp.dev/protocol) into a
// Config override, plus the set of fields the client actually sent (so
// Merge can tell an explicit false from a field it never mentioned). A
// malformed payload is logged and ignored rather than failing initialize.
func decodeInitializationOptions(raw any, logger *zap.Logger) (*grizzly.Config, map[string]bool) {
	if raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		logger.Warn("failed to marshal initializationOptions", zap.Error(err))
		return nil, nil
	}

	override := &grizzly.Config{}
	if err := json.Unmarshal(data, override); err != nil {
		logger.Warn("failed to unmarshal initializationOptions", zap.Error(err))
		return nil, nil
	}

	present, err := grizzly.PresentFields(data)
	if err != nil {
		logger.Warn("failed to inspect initializationOptions fields", zap.Error(err))
		return nil, nil
	}

	return override, present
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")
	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Debug("DidOpen", zap.String("uri", string(params.TextDocument.URI)))

	ds := &docState{doc: analysis.NewDocument(string(params.TextDocument.URI), int32(params.TextDocument.Version), params.TextDocument.Text)}

	s.mu.Lock()
	s.documents[params.TextDocument.URI] = ds
	s.mu.Unlock()

	s.scheduleDiagnostics(ctx, params.TextDocument.URI, ds, false)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.logger.Debug("DidChange", zap.String("uri", string(params.TextDocument.URI)))

	ds, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))
		return nil
	}

	if len(params.ContentChanges) == 0 {
		return nil
	}

	text := params.ContentChanges[len(params.ContentChanges)-1].Text

	ds.mu.Lock()
	ds.doc = analysis.NewDocument(string(params.TextDocument.URI), int32(params.TextDocument.Version), text)
	ds.mu.Unlock()

	s.scheduleDiagnostics(ctx, params.TextDocument.URI, ds, true)

	return nil
}

// DidClose handles textDocument/didClose notifications.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Debug("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	if ds, ok := s.documents[params.TextDocument.URI]; ok && ds.cancel != nil {
		ds.cancel()
	}
	delete(s.documents, params.TextDocument.URI)
	s.mu.Unlock()

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// DidSave handles textDocument/didSave notifications. Under
// diagnostics_on_save_only, this is the only point diagnostics run.
func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.logger.Debug("DidSave", zap.String("uri", string(params.TextDocument.URI)))

	if !s.config.DiagnosticsOnSaveOnly {
		return nil
	}

	ds, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil
	}

	s.scheduleDiagnostics(ctx, params.TextDocument.URI, ds, false)

	return nil
}

// scheduleDiagnostics runs the Diagnostics Engine on ds's current text,
// cancelling any run already in flight for this document first so only the
// most recently applied change is ever published. isChange marks a
// didOpen/didChange trigger, which is skipped under diagnostics_on_save_only.
func (s *Server) scheduleDiagnostics(ctx context.Context, uri protocol.DocumentURI, ds *docState, isChange bool) {
	if isChange && s.config.DiagnosticsOnSaveOnly {
		return
	}

	ds.mu.Lock()
	if ds.cancel != nil {
		ds.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	ds.cancel = cancel
	doc := ds.doc
	ds.mu.Unlock()

	go func() {
		inv := s.store.Snapshot()
		diags := analysis.Diagnose(doc.URI, doc.Text, inv)

		if runCtx.Err() != nil {
			return
		}

		ds.mu.Lock()
		doc.Diagnostics = diags
		doc.Variables = analysis.ExtractVariables(doc, s.config.VariablePattern)
		ds.mu.Unlock()

		s.publishDiagnostics(runCtx, uri, doc)
	}()
}

// Store returns the server's step inventory store, so a caller can seed or
// rebuild it without going through the Source Loader (tests, or a CLI
// subcommand driving the loader itself).
func (s *Server) Store() *grizzly.Store { return s.store }

// Registry returns the server's parse type registry.
func (s *Server) Registry() *grizzly.ParseTypeRegistry { return s.registry }

// Config returns the server's merged configuration, as loaded and
// overridden during Initialize.
func (s *Server) Config() *grizzly.Config { return s.config }

// getDocument returns a document's state by URI (read-locked).
func (s *Server) getDocument(uri protocol.DocumentURI) (*docState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.documents[uri]

	return ds, ok
}

// currentDocument returns a stable snapshot of doc's fields, safe to read
// without holding ds.mu for the rest of a request.
func (ds *docState) currentDocument() *analysis.Document {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return ds.doc
}

// RebuildInventory runs the Source Loader and swaps in a freshly built
// inventory. Each call runs the loader itself; only the final Store.Rebuild
// step is shared between concurrent callers, via the Store's singleflight
// group.
func (s *Server) RebuildInventory(ctx context.Context, reporter progress.Reporter) {
	s.setRebuildState(RebuildLoading, nil)

	result, err := s.loader.Load(ctx, reporter)
	if err != nil {
		s.logger.Error("source load failed", zap.Error(err))
		s.setRebuildState(RebuildFailed, err)
		reporter.Done(err)

		return
	}

	for name, alts := range result.ParseTypes {
		s.registry.Register(name, alts)
	}

	for _, w := range result.Warnings {
		s.logger.Warn("harvester warning", zap.Error(w))
	}

	_, err = s.store.Rebuild(ctx, result.Definitions, s.registry)
	if err != nil {
		s.logger.Warn("some step definitions failed to normalize", zap.Error(err))
	}

	s.setRebuildState(RebuildReady, nil)
	reporter.Done(nil)
}

// setRebuildState records the server's current rebuild status, plus the
// error that caused a RebuildFailed transition (nil otherwise).
func (s *Server) setRebuildState(state RebuildState, err error) {
	s.rebuildMu.Lock()
	s.rebuildState = state
	s.lastError = err
	s.rebuildMu.Unlock()
}

// RebuildStatus returns the server's current rebuild state and the error
// that produced it, if it is RebuildFailed.
func (s *Server) RebuildStatus() (RebuildState, error) {
	s.rebuildMu.RLock()
	defer s.rebuildMu.RUnlock()

	return s.rebuildState, s.lastError
}

// Ready reports whether the most recent rebuild completed successfully.
func (s *Server) Ready() bool {
	state, _ := s.RebuildStatus()
	return state == RebuildReady
}
