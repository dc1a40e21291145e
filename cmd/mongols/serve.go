package main

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/mongols/lsp"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the language server over stdio",
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}

	logger, level, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting mongols language server")

	return serve(ctx, logger, level, os.Stdin, os.Stdout)
}

func serve(ctx context.Context, logger *zap.Logger, level zap.AtomicLevel, in io.Reader, out io.Writer) error {
	// Create a JSON-RPC stream connection over stdio
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(&readWriteCloser{in, out}))

	// Create a client to send notifications to the editor
	client := protocol.ClientDispatcher(conn, logger)

	// Mirror server logs into the editor's output panel
	lspLogger, stopLogs := lsp.NewLSPLogger(client, logger.Core(), level)
	defer stopLogs()

	server := lsp.NewServer(client, conn, lspLogger)
	conn.Go(ctx, server.Handler())

	select {
	case <-conn.Done():
		return conn.Err()
	case <-server.Done():
		return conn.Close()
	}
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
