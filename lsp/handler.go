package lsp

import (
	"context"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Handler returns the jsonrpc2 handler serving s. $/cancelRequest cancels
// the context of the named request.
func (s *Server) Handler() jsonrpc2.Handler {
	return protocol.CancelHandler(s.handle)
}

// handle runs on the connection's read loop. Document notifications are
// applied in order; completion and commands snapshot what they need here
// and finish on their own goroutine so a slow fetch or a long playground
// run never blocks the loop.
//
//nolint:cyclop // flat method switch
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	defer s.traceHandler(req.Method())()

	switch req.Method() {
	case protocol.MethodInitialize:
		var params protocol.InitializeParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		result, err := s.Initialize(ctx, &params)

		return reply(ctx, result, err)

	case protocol.MethodInitialized:
		return reply(ctx, nil, s.Initialized(ctx, &protocol.InitializedParams{}))

	case protocol.MethodShutdown:
		return reply(ctx, nil, s.Shutdown(ctx))

	case protocol.MethodExit:
		return reply(ctx, nil, s.Exit(ctx))

	case protocol.MethodTextDocumentDidOpen:
		var params protocol.DidOpenTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		return reply(ctx, nil, s.DidOpen(ctx, &params))

	case protocol.MethodTextDocumentDidChange:
		var params protocol.DidChangeTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		return reply(ctx, nil, s.DidChange(ctx, &params))

	case protocol.MethodTextDocumentDidClose:
		var params protocol.DidCloseTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		return reply(ctx, nil, s.DidClose(ctx, &params))

	case protocol.MethodTextDocumentDidSave:
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentCompletion:
		var params protocol.CompletionParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		doc, ok := s.getDocument(params.TextDocument.URI)
		if !ok {
			return reply(ctx, &protocol.CompletionList{Items: []protocol.CompletionItem{}}, nil)
		}

		go func() {
			_ = reply(ctx, s.complete(ctx, doc.Content, params.Position), nil)
		}()

		return nil

	case protocol.MethodTextDocumentCodeAction:
		var params protocol.CodeActionParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		result, err := s.CodeAction(ctx, &params)

		return reply(ctx, result, err)

	case protocol.MethodWorkspaceExecuteCommand:
		var params executeCommandParams
		if err := decodeParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}

		var arg json.RawMessage
		if len(params.Arguments) > 0 {
			arg = params.Arguments[0]
		}

		go func() {
			result, err := s.ExecuteCommand(ctx, params.Command, arg)
			if err != nil {
				s.logger.Warn("Command failed", zap.String("command", params.Command), zap.Error(err))
			}

			_ = reply(ctx, result, err)
		}()

		return nil
	}

	if _, ok := req.(*jsonrpc2.Call); !ok {
		s.logger.Debug("Ignoring notification", zap.String("method", req.Method()))

		return nil
	}

	return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
}

func decodeParams(req jsonrpc2.Request, v any) error {
	if len(req.Params()) == 0 {
		return nil
	}

	if err := json.Unmarshal(req.Params(), v); err != nil {
		return jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error())
	}

	return nil
}
