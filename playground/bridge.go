package playground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// replySettle is how long a worker exit waits for a reply that was read
// just before EOF to reach the caller.
const replySettle = 100 * time.Millisecond

// Bridge runs playgrounds in worker processes. It owns at most one worker
// at a time; a new run tears down the previous one.
type Bridge struct {
	logger      *zap.Logger
	executable  string
	args        []string
	env         []string
	gracePeriod time.Duration
	timeout     time.Duration

	mu   sync.Mutex
	gen  uint64
	stop context.CancelFunc
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithCommand sets the worker command. The default re-executes the
// current binary as "worker".
func WithCommand(executable string, args ...string) Option {
	return func(b *Bridge) {
		b.executable = executable
		b.args = args
	}
}

// WithEnv adds environment variables for the worker.
func WithEnv(env ...string) Option {
	return func(b *Bridge) {
		b.env = append(b.env, env...)
	}
}

// WithGracePeriod sets how long a cancelled worker has to exit after its
// stdin is closed before it is killed. Zero kills immediately.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Bridge) {
		b.gracePeriod = d
	}
}

// WithTimeout bounds each run. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// NewBridge creates a Bridge with the given options.
func NewBridge(opts ...Option) *Bridge {
	b := &Bridge{args: []string{"worker"}}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	return b
}

// Stop cancels the in-flight run, if any. The run resolves as cancelled.
func (b *Bridge) Stop() {
	b.mu.Lock()
	stop := b.stop
	b.mu.Unlock()

	if stop != nil {
		b.logger.Debug("stopping in-flight run")
		stop()
	}
}

// begin registers a new run, cancelling any previous one.
func (b *Bridge) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	if b.stop != nil {
		b.stop()
	}

	b.gen++
	gen := b.gen
	b.stop = cancel
	b.mu.Unlock()

	return runCtx, func() {
		cancel()

		b.mu.Lock()
		if b.gen == gen {
			b.stop = nil
		}
		b.mu.Unlock()
	}
}

func (b *Bridge) command() (string, []string, error) {
	if b.executable != "" {
		return b.executable, b.args, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("playground: locating worker executable: %w", err)
	}

	return exe, b.args, nil
}

// Evaluate runs req in a fresh worker and returns its result. Console
// output and lifecycle events go to h, which may be nil.
//
// A run cancelled through ctx or Stop returns (nil, nil). A worker that
// exits without replying returns ErrWorkerExited.
func (b *Bridge) Evaluate(ctx context.Context, req Request, h Handler) (*Result, error) {
	if strings.TrimSpace(req.CodeToEvaluate) == "" {
		return nil, ErrEmptyCode
	}

	if req.ConnectionString == "" {
		return nil, ErrNoConnection
	}

	if h == nil {
		h = HandlerFuncs{}
	}

	exe, args, err := b.command()
	if err != nil {
		return nil, err
	}

	runCtx, release := b.begin(ctx)
	defer release()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, b.timeout)

		defer cancel()
	}

	r := &run{
		id:      uuid.NewString(),
		source:  req.Source,
		start:   time.Now(),
		handler: h,
		logger:  b.logger,
		ctx:     context.WithoutCancel(ctx),
	}

	w, err := b.spawn(runCtx, exe, args, h)
	if err != nil {
		r.emit(Event{Action: ActionFailed, Error: err})

		return nil, err
	}

	b.logger.Debug("worker started", zap.String("run", r.id), zap.Int("pid", w.cmd.Process.Pid))
	r.emit(Event{Action: ActionStarted})

	w.conn.Go(runCtx, b.printHandler(r))

	type reply struct {
		result *Result
		err    error
	}

	replies := make(chan reply, 1)

	go func() {
		var result Result

		_, err := w.conn.Call(runCtx, MethodExecute, req, &result)
		replies <- reply{result: &result, err: err}
	}()

	var (
		rep     reply
		stopped bool
	)

	select {
	case rep = <-replies:
		stopped = rep.err != nil && runCtx.Err() != nil
	case <-w.conn.Done():
		select {
		case rep = <-replies:
		case <-time.After(replySettle):
			rep = reply{err: ErrWorkerExited}
		}
	case <-runCtx.Done():
		stopped = true
	}

	w.release()

	switch {
	case stopped && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		err := fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
		r.emit(Event{Action: ActionFailed, Error: err})

		return nil, err

	case stopped:
		b.logger.Debug("run cancelled", zap.String("run", r.id))
		r.emit(Event{Action: ActionCancelled})

		return nil, nil //nolint:nilnil // cancellation resolves with no result

	case rep.err != nil:
		err := rep.err

		var rpcErr *jsonrpc2.Error
		if !errors.As(err, &rpcErr) && !errors.Is(err, ErrWorkerExited) {
			err = fmt.Errorf("%w: %w", ErrWorkerExited, err)
		}

		r.emit(Event{Action: ActionFailed, Error: err})

		return nil, err
	}

	r.emit(Event{Action: ActionFinished, Result: rep.result})

	return rep.result, nil
}

func (b *Bridge) printHandler(r *run) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() != MethodPrint {
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}

		var params PrintParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			b.logger.Warn("invalid print notification", zap.Error(err))

			return nil
		}

		for _, out := range params.Output {
			r.emit(Event{Action: ActionOutput, Output: out})
		}

		return nil
	}
}

// worker is a spawned worker process and its connection.
type worker struct {
	cmd    *exec.Cmd
	conn   jsonrpc2.Conn
	stderr *lineWriter
	cancel context.CancelFunc
}

func (b *Bridge) spawn(ctx context.Context, exe string, args []string, h Handler) (*worker, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Env = append(os.Environ(), b.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()

		return nil, fmt.Errorf("playground: worker stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()

		return nil, fmt.Errorf("playground: worker stdout: %w", err)
	}

	stderr := newLineWriter(func(line string) {
		_ = h.Err(line)
	})
	cmd.Stderr = stderr

	if b.gracePeriod > 0 {
		// Closing stdin asks the worker to stop; WaitDelay kills it later.
		cmd.Cancel = func() error {
			return stdin.Close()
		}
		cmd.WaitDelay = b.gracePeriod
	}

	if err := cmd.Start(); err != nil {
		cancel()

		return nil, fmt.Errorf("playground: starting worker: %w", err)
	}

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&stdio{ReadCloser: stdout, WriteCloser: stdin}))

	return &worker{cmd: cmd, conn: conn, stderr: stderr, cancel: cancel}, nil
}

// release closes the connection and reaps the process. A worker that does
// not exit on its own is killed after the grace period.
func (w *worker) release() {
	_ = w.conn.Close()
	w.cancel()
	_ = w.cmd.Wait()
	w.stderr.Flush()
}

// stdio joins the worker's stdout and stdin into one stream.
type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s *stdio) Close() error {
	return errors.Join(s.WriteCloser.Close(), s.ReadCloser.Close())
}

// run tags events with the run's identity.
type run struct {
	id      string
	source  string
	start   time.Time
	handler Handler
	logger  *zap.Logger
	ctx     context.Context //nolint:containedctx // events outlive the run context
}

func (r *run) emit(e Event) {
	e.Time = time.Now()
	e.RunID = r.id
	e.Source = r.source

	if e.Action.IsTerminal() {
		e.Elapsed = e.Time.Sub(r.start)
	}

	if err := r.handler.Event(r.ctx, e); err != nil {
		r.logger.Debug("run handler failed", zap.String("action", string(e.Action)), zap.Error(err))
	}
}
