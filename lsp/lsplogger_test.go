package lsp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/mongols/lsp"
)

type logRecorder chan *protocol.LogMessageParams

func (r logRecorder) LogMessage(_ context.Context, params *protocol.LogMessageParams) error {
	r <- params

	return nil
}

func receive(t *testing.T, r logRecorder) *protocol.LogMessageParams {
	t.Helper()

	select {
	case params := <-r:
		return params
	case <-time.After(5 * time.Second):
		t.Fatal("no log message delivered")

		return nil
	}
}

func TestLSPLogger(t *testing.T) {
	t.Parallel()

	rec := make(logRecorder, 8)
	logger, stop := lsp.NewLSPLogger(rec, zapcore.NewNopCore(), zapcore.InfoLevel)

	t.Cleanup(stop)

	logger.Debug("hidden")
	logger.Named("cache").With(zap.String("store", "fields")).Warn("cleared")
	logger.Error("boom")

	warn := receive(t, rec)
	assert.Equal(t, protocol.MessageTypeWarning, warn.Type)
	assert.Contains(t, warn.Message, "cache")
	assert.Contains(t, warn.Message, "cleared")
	assert.Contains(t, warn.Message, `"store": "fields"`)

	errMsg := receive(t, rec)
	assert.Equal(t, protocol.MessageTypeError, errMsg.Type)
	assert.Contains(t, errMsg.Message, "boom")
	assert.NotContains(t, errMsg.Message, "store", "fields do not leak between derived loggers")
}

func TestLSPLogger_DebugMapsToLog(t *testing.T) {
	t.Parallel()

	rec := make(logRecorder, 1)
	logger, stop := lsp.NewLSPLogger(rec, zapcore.NewNopCore(), zapcore.DebugLevel)

	t.Cleanup(stop)

	logger.Debug("trace")

	msg := receive(t, rec)
	require.NotNil(t, msg)
	assert.Equal(t, protocol.MessageTypeLog, msg.Type)
}
