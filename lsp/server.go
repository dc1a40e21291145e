// Package lsp implements a Language Server Protocol server for MongoDB
// playground scripts.
package lsp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/completion"
	"github.com/rlch/mongols/playground"
	"github.com/rlch/mongols/session"
)

// Notifier sends notifications that have no typed method on protocol.Client.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// Playground runs playground code out of process.
type Playground interface {
	Evaluate(ctx context.Context, req playground.Request, h playground.Handler) (*playground.Result, error)
	Stop()
}

// Server implements the MongoDB playground language server.
type Server struct {
	client   protocol.Client
	notifier Notifier
	logger   *zap.Logger

	// Document state
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	cache    *session.Cache
	resolver *completion.Resolver
	visitor  *analysis.Visitor

	// Connection state
	connMu        sync.Mutex
	config        mongols.Config
	configured    bool
	source        mongols.DataSource
	connectionID  string
	connectionURI string
	playground    Playground

	// Server state
	initialized   bool
	shutdown      bool
	workspaceRoot string
	exitOnce      sync.Once
	exited        chan struct{}
}

// Document represents an open document in the server.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string

	// Diagnostics from the last scan of Content.
	Diagnostics []analysis.Diagnostic
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the configuration instead of loading it from the
// workspace root on initialize.
func WithConfig(cfg mongols.Config) Option {
	return func(s *Server) {
		s.config = cfg.WithDefaults()
		s.configured = true
	}
}

// WithPlayground sets the playground runner. The default is a
// playground.Bridge built from the configuration on initialize.
func WithPlayground(p Playground) Option {
	return func(s *Server) {
		s.playground = p
	}
}

// NewServer creates a new LSP server. notifier may be nil, in which case
// console output from playground runs is only logged.
func NewServer(client protocol.Client, notifier Notifier, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := session.New(logger.Named("cache"))
	visitor := analysis.NewVisitor(logger.Named("visitor"))

	s := &Server{
		client:    client,
		notifier:  notifier,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*Document),
		cache:     cache,
		visitor:   visitor,
		resolver: completion.NewResolver(cache,
			completion.WithLogger(logger.Named("completion")),
			completion.WithVisitor(visitor)),
		config: mongols.Config{}.WithDefaults(),
		exited: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Done is closed once the client sends exit.
func (s *Server) Done() <-chan struct{} {
	return s.exited
}

// Initialize handles the initialize request.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize", zap.String("rootURI", string(params.RootURI)))

	switch {
	case params.RootURI != "":
		s.workspaceRoot = uriToPath(string(params.RootURI))
	case params.RootPath != "":
		s.workspaceRoot = params.RootPath
	case len(params.WorkspaceFolders) > 0:
		s.workspaceRoot = uriToPath(params.WorkspaceFolders[0].URI)
	}

	s.connMu.Lock()
	s.loadConfig()

	if s.playground == nil {
		s.playground = newBridge(s.config, s.logger.Named("playground"))
	}
	s.connMu.Unlock()

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", "'", "\"", "$"},
				ResolveProvider:   false,
			},
			CodeActionProvider: &protocol.CodeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{
					protocol.QuickFix,
				},
			},
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: Commands,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "mongols",
			Version: "0.1.0",
		},
	}, nil
}

// loadConfig reads the workspace config unless one was supplied. Callers
// hold connMu.
func (s *Server) loadConfig() {
	if s.configured || s.workspaceRoot == "" {
		return
	}

	cfg, err := mongols.LoadConfig(s.workspaceRoot)
	if err != nil {
		if !errors.Is(err, mongols.ErrConfigNotFound) {
			s.logger.Warn("Failed to load config", zap.String("root", s.workspaceRoot), zap.Error(err))
		}

		return
	}

	s.config = cfg.WithDefaults()
	s.logger.Info("Loaded config",
		zap.String("root", s.workspaceRoot),
		zap.String("dataSource", s.config.Connection.DataSource))
}

// uriToPath converts a file URI to a path. Other schemes have no path.
func uriToPath(u string) string {
	if !strings.HasPrefix(u, uri.FileScheme+"://") {
		return ""
	}

	return uri.URI(u).Filename()
}

func newBridge(cfg mongols.Config, logger *zap.Logger) *playground.Bridge {
	return playground.NewBridge(
		playground.WithLogger(logger),
		playground.WithCommand("", "worker", "--mongosh", cfg.Playground.Mongosh),
		playground.WithGracePeriod(cfg.Playground.GracePeriod),
		playground.WithTimeout(cfg.Playground.Timeout),
	)
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request. It stops any in-flight run and
// releases the data source.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.playground != nil {
		s.playground.Stop()
	}

	s.closeSource(ctx)

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")
	s.exitOnce.Do(func() { close(s.exited) })

	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Info("DidOpen", zap.String("uri", string(params.TextDocument.URI)))

	doc := &Document{
		URI:         params.TextDocument.URI,
		Version:     params.TextDocument.Version,
		Content:     params.TextDocument.Text,
		Diagnostics: analysis.Scan(params.TextDocument.Text),
	}

	snapshot := *doc

	// Hold lock only for document map update
	s.mu.Lock()
	s.documents[params.TextDocument.URI] = doc
	s.mu.Unlock()

	// Publish diagnostics outside the lock to prevent deadlock
	s.publishDiagnostics(ctx, &snapshot)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	start := time.Now()

	if len(params.ContentChanges) == 0 {
		return nil
	}

	// Full sync: the last change holds the whole document.
	content := params.ContentChanges[len(params.ContentChanges)-1].Text
	diagnostics := analysis.Scan(content)

	s.mu.Lock()
	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))

		return nil
	}

	doc.Content = content
	doc.Version = params.TextDocument.Version
	doc.Diagnostics = diagnostics
	snapshot := *doc
	s.mu.Unlock()

	// The client may send requests (e.g., completion) while we're publishing.
	s.publishDiagnostics(ctx, &snapshot)

	s.logger.Debug("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version),
		zap.Int("diagnostics", len(diagnostics)),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// DidClose handles textDocument/didClose notifications.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Info("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	delete(s.documents, params.TextDocument.URI)
	s.mu.Unlock()

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("Failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// getDocument returns a copy of a document by URI (read-locked).
func (s *Server) getDocument(docURI protocol.DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[docURI]
	if !ok {
		return Document{}, false
	}

	return *doc, true
}

// closeSource closes the active data source. Callers hold connMu.
func (s *Server) closeSource(ctx context.Context) {
	if s.source == nil {
		return
	}

	if err := s.source.Close(ctx); err != nil {
		s.logger.Warn("Failed to close data source", zap.Error(err))
	}

	s.source = nil
}
