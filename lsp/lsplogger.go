package lsp

import (
	"context"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logQueueSize bounds pending window/logMessage notifications. Entries
// are dropped when the queue is full.
const logQueueSize = 100

// LogMessenger is the part of protocol.Client the logger needs.
type LogMessenger interface {
	LogMessage(ctx context.Context, params *protocol.LogMessageParams) error
}

// lspLogCore is a zapcore.Core that forwards entries to the client as
// window/logMessage notifications.
type lspLogCore struct {
	zapcore.LevelEnabler

	encoder zapcore.Encoder
	fields  []zapcore.Field
	sink    *logSink
}

// logSink is shared by a core and every core derived from it with With.
type logSink struct {
	client LogMessenger
	queue  chan *protocol.LogMessageParams

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLSPLogger creates a logger that sends entries at or above level to
// the client and also writes them to fallback (typically stderr). The
// returned function stops delivery to the client.
func NewLSPLogger(client LogMessenger, fallback zapcore.Core, level zapcore.LevelEnabler) (*zap.Logger, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sink := &logSink{
		client: client,
		queue:  make(chan *protocol.LogMessageParams, logQueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sink.run()

	core := &lspLogCore{
		LevelEnabler: level,
		encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:     "msg",
			NameKey:        "logger",
			EncodeDuration: zapcore.StringDurationEncoder,
		}),
		sink: sink,
	}

	return zap.New(zapcore.NewTee(core, fallback)), sink.stop
}

func (s *logSink) run() {
	defer close(s.done)

	for {
		select {
		case params := <-s.queue:
			// The client may already be gone.
			_ = s.client.LogMessage(s.ctx, params)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *logSink) stop() {
	s.cancel()
	<-s.done
}

func (s *logSink) enqueue(params *protocol.LogMessageParams) {
	select {
	case s.queue <- params:
	default:
	}
}

func (c *lspLogCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.encoder = c.encoder.Clone()
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)

	return &clone
}

func (c *lspLogCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}

	return ce
}

func (c *lspLogCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.sink.mu.Lock()
	buf, err := c.encoder.EncodeEntry(entry, append(c.fields[:len(c.fields):len(c.fields)], fields...))
	c.sink.mu.Unlock()

	if err != nil {
		return err
	}

	message := strings.TrimSpace(buf.String())
	buf.Free()

	c.sink.enqueue(&protocol.LogMessageParams{
		Type:    messageType(entry.Level),
		Message: message,
	})

	return nil
}

func (c *lspLogCore) Sync() error {
	return nil
}

// messageType maps zap levels to LSP message types.
func messageType(level zapcore.Level) protocol.MessageType {
	switch {
	case level <= zapcore.DebugLevel:
		return protocol.MessageTypeLog
	case level == zapcore.InfoLevel:
		return protocol.MessageTypeInfo
	case level == zapcore.WarnLevel:
		return protocol.MessageTypeWarning
	default:
		return protocol.MessageTypeError
	}
}
