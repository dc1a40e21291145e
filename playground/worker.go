package playground

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// Worker is the child side of the bridge. It serves one connection and
// exits when the parent closes it.
type Worker struct {
	evaluator Evaluator
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewWorker creates a Worker that evaluates through e.
func NewWorker(e Evaluator, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{evaluator: e, logger: logger}
}

// Serve speaks JSON-RPC over rwc until the peer closes it. In-flight
// evaluations are cancelled when the connection ends, and Serve waits for
// them to return.
func (w *Worker) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	conn.Go(ctx, w.handler(ctx, conn))

	select {
	case <-conn.Done():
	case <-ctx.Done():
		_ = conn.Close()
		<-conn.Done()
	}

	cancel()
	w.wg.Wait()

	err := conn.Err()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || ctx.Err() != nil {
		return nil
	}

	return err
}

func (w *Worker) handler(ctx context.Context, conn jsonrpc2.Conn) jsonrpc2.Handler {
	return func(hctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() != MethodExecute {
			return jsonrpc2.MethodNotFoundHandler(hctx, reply, req)
		}

		var params Request
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(hctx, nil, jsonrpc2.NewError(jsonrpc2.InvalidParams, err.Error()))
		}

		// Evaluate off the read loop so a closed stdin is noticed mid-run.
		w.wg.Add(1)

		go func() {
			defer w.wg.Done()

			result, err := w.execute(ctx, conn, params)
			if err != nil {
				w.logger.Debug("evaluation failed", zap.Error(err))
			}

			if rerr := reply(context.WithoutCancel(ctx), result, err); rerr != nil {
				w.logger.Debug("reply failed", zap.Error(rerr))
			}
		}()

		return nil
	}
}

func (w *Worker) execute(ctx context.Context, conn jsonrpc2.Conn, req Request) (*Result, error) {
	notifyCtx := context.WithoutCancel(ctx)

	output := func(fragment string) {
		err := conn.Notify(notifyCtx, MethodPrint, PrintParams{Output: []string{fragment}})
		if err != nil {
			w.logger.Debug("print notification failed", zap.Error(err))
		}
	}

	return w.evaluator.Evaluate(ctx, req, output)
}
