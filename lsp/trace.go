package lsp

import (
	"time"

	"go.uber.org/zap"
)

// traceHandler logs entry and exit of a handler for debugging freezes.
// Asynchronous handlers log their exit when dispatch returns, not when
// they reply.
func (s *Server) traceHandler(method string) func() {
	start := time.Now()
	s.logger.Debug(">>> HANDLER START", zap.String("method", method))

	return func() {
		s.logger.Debug("<<< HANDLER END", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
	}
}
