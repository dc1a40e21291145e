package lsp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/playground"
	"github.com/rlch/mongols/session"
)

// Workspace commands.
const (
	CommandConnect                = "mongodb.connect"
	CommandDisconnect             = "mongodb.disconnect"
	CommandExecuteAll             = "mongodb.executeAll"
	CommandClearCachedCompletions = "mongodb.clearCachedCompletions"
	CommandExportToLanguageMode   = "mongodb.getExportToLanguageMode"
	CommandNamespaceForSelection  = "mongodb.getNamespaceForSelection"
)

// Commands lists every command advertised in the server capabilities.
var Commands = []string{
	CommandConnect,
	CommandDisconnect,
	CommandExecuteAll,
	CommandClearCachedCompletions,
	CommandExportToLanguageMode,
	CommandNamespaceForSelection,
}

// MethodShowConsoleOutput relays playground console output to the client.
// Params are an array of output fragments.
const MethodShowConsoleOutput = "mongodb/showConsoleOutput"

// ConnectParams are the arguments of mongodb.connect. Empty fields fall
// back to the workspace configuration.
type ConnectParams struct {
	ConnectionID string `json:"connectionId,omitempty"`
	URI          string `json:"uri,omitempty"`
	Database     string `json:"database,omitempty"`
}

// ConnectResult identifies the new active connection.
type ConnectResult struct {
	ConnectionID string `json:"connectionId"`
}

// ExecuteAllParams are the arguments of mongodb.executeAll.
type ExecuteAllParams struct {
	CodeToEvaluate string `json:"codeToEvaluate"`
	ConnectionID   string `json:"connectionId,omitempty"`
}

// ExecuteAllResult wraps a playground result.
type ExecuteAllResult struct {
	Result *playground.Result `json:"result"`
}

// SelectionParams are the arguments of the selection queries.
type SelectionParams struct {
	TextFromEditor string             `json:"textFromEditor"`
	Selection      analysis.Selection `json:"selection"`
}

// Namespace is the result of mongodb.getNamespaceForSelection.
type Namespace struct {
	DatabaseName   *string `json:"databaseName"`
	CollectionName *string `json:"collectionName"`
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// ExecuteCommand runs a workspace command. The first argument, when
// present, holds the command's parameters.
func (s *Server) ExecuteCommand(ctx context.Context, command string, arg json.RawMessage) (any, error) {
	s.logger.Info("ExecuteCommand", zap.String("command", command))

	switch command {
	case CommandConnect:
		var params ConnectParams
		if err := decodeArg(arg, &params); err != nil {
			return nil, err
		}

		return s.Connect(ctx, params)

	case CommandDisconnect:
		s.Disconnect(ctx)

		return nil, nil //nolint:nilnil // command resolves to null

	case CommandExecuteAll:
		var params ExecuteAllParams
		if err := decodeArg(arg, &params); err != nil {
			return nil, err
		}

		result, err := s.ExecuteAll(ctx, params)
		if err != nil || result == nil {
			return nil, err
		}

		return result, nil

	case CommandClearCachedCompletions:
		var scope session.Scope
		if err := decodeArg(arg, &scope); err != nil {
			return nil, err
		}

		s.cache.Clear(scope)

		return nil, nil //nolint:nilnil // command resolves to null

	case CommandExportToLanguageMode:
		var params SelectionParams
		if err := decodeArg(arg, &params); err != nil {
			return nil, err
		}

		return s.visitor.ExportMode(ctx, params.TextFromEditor, params.Selection), nil

	case CommandNamespaceForSelection:
		var params SelectionParams
		if err := decodeArg(arg, &params); err != nil {
			return nil, err
		}

		return s.namespaceForSelection(ctx, params), nil
	}

	return nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, "unknown command "+command)
}

func decodeArg(arg json.RawMessage, v any) error {
	if len(arg) == 0 {
		return nil
	}

	if err := json.Unmarshal(arg, v); err != nil {
		return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
	}

	return nil
}

// Connect opens a data source and makes it the active connection. Every
// cache store is cleared in the same step, any in-flight playground run is
// stopped, and databases and stream processors are preloaded.
func (s *Server) Connect(ctx context.Context, params ConnectParams) (*ConnectResult, error) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	cfg := s.config

	connURI := params.URI
	if connURI == "" {
		connURI = cfg.Connection.URI
	}

	if connURI == "" {
		return nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, "connect: no connection uri given or configured")
	}

	database := params.Database
	if database == "" {
		database = cfg.Connection.Database
	}

	if s.playground != nil {
		s.playground.Stop()
	}

	src, err := mongols.OpenDataSource(ctx, cfg.Connection.DataSource, mongols.DataSourceConfig{
		URI:        connURI,
		SampleSize: cfg.Schema.SampleSize,
	})
	if err != nil {
		s.showMessage(ctx, protocol.MessageTypeError, fmt.Sprintf("Unable to connect: %v", err))

		return nil, fmt.Errorf("connect: %w", err)
	}

	s.closeSource(ctx)

	s.source = src
	s.connectionURI = connURI
	s.connectionID = params.ConnectionID

	if s.connectionID == "" {
		s.connectionID = uuid.NewString()
	}

	s.resolver.Connect(src, database)

	if err := s.resolver.Preload(ctx); err != nil {
		s.logger.Warn("Preload incomplete", zap.Error(err))
	}

	s.logger.Info("Connected",
		zap.String("connectionId", s.connectionID),
		zap.String("dataSource", src.Name()))

	return &ConnectResult{ConnectionID: s.connectionID}, nil
}

// Disconnect drops the active connection and clears every cache store.
func (s *Server) Disconnect(ctx context.Context) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.playground != nil {
		s.playground.Stop()
	}

	s.resolver.Connect(nil, "")
	s.closeSource(ctx)
	s.connectionID = ""
	s.connectionURI = ""

	s.logger.Info("Disconnected")
}

// ExecuteAll runs a playground against the active connection. Console
// output is relayed to the client as it arrives. A run for a connection
// that is no longer active, and a cancelled run, resolve to nil.
func (s *Server) ExecuteAll(ctx context.Context, params ExecuteAllParams) (*ExecuteAllResult, error) {
	s.connMu.Lock()
	activeID, connURI, runner := s.connectionID, s.connectionURI, s.playground
	s.connMu.Unlock()

	if params.ConnectionID != "" && params.ConnectionID != activeID {
		s.logger.Info("Skipping run for inactive connection",
			zap.String("requested", params.ConnectionID),
			zap.String("active", activeID))

		return nil, nil //nolint:nilnil // stale runs resolve to null
	}

	if connURI == "" || runner == nil {
		s.showMessage(ctx, protocol.MessageTypeError, "Please connect to a database before running a playground.")

		return nil, nil //nolint:nilnil // reported through showMessage
	}

	result, err := runner.Evaluate(ctx, playground.Request{
		CodeToEvaluate:   params.CodeToEvaluate,
		ConnectionString: connURI,
	}, s.consoleRelay(ctx))
	if err != nil {
		s.logger.Warn("Playground run failed", zap.Error(err))

		if errors.Is(err, playground.ErrEmptyCode) {
			return nil, nil //nolint:nilnil // nothing to run
		}

		s.showMessage(ctx, protocol.MessageTypeError, err.Error())

		return nil, nil //nolint:nilnil // reported through showMessage
	}

	if result == nil {
		return nil, nil //nolint:nilnil // cancelled
	}

	return &ExecuteAllResult{Result: result}, nil
}

// consoleRelay forwards run output to the client.
func (s *Server) consoleRelay(ctx context.Context) playground.Handler {
	notifyCtx := context.WithoutCancel(ctx)

	return playground.HandlerFuncs{
		OnEvent: func(_ context.Context, e playground.Event) error {
			if e.Action != playground.ActionOutput {
				return nil
			}

			if s.notifier == nil {
				s.logger.Debug("console output", zap.String("output", e.Output))

				return nil
			}

			return s.notifier.Notify(notifyCtx, MethodShowConsoleOutput, []string{e.Output})
		},
		OnErr: func(text string) error {
			s.logger.Debug("worker stderr", zap.String("line", text))

			return nil
		},
	}
}

func (s *Server) namespaceForSelection(ctx context.Context, params SelectionParams) Namespace {
	database, collection := s.visitor.NamespaceForSelection(ctx, params.TextFromEditor, params.Selection)

	var ns Namespace
	if database != "" {
		ns.DatabaseName = &database
	}

	if collection != "" {
		ns.CollectionName = &collection
	}

	return ns
}

func (s *Server) showMessage(ctx context.Context, typ protocol.MessageType, message string) {
	err := s.client.ShowMessage(context.WithoutCancel(ctx), &protocol.ShowMessageParams{
		Type:    typ,
		Message: message,
	})
	if err != nil {
		s.logger.Warn("showMessage failed", zap.Error(err))
	}
}
