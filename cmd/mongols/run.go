package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/rlch/mongols/playground"
)

// Run command errors.
var (
	ErrNoPlaygroundFile = errors.New("expected exactly one playground file")
	ErrNoConnectionURI  = errors.New("no connection URI specified (use --uri or .mongols.yaml)")
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a playground file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "uri",
				Usage:   "connection URI (overrides config)",
				Sources: cli.EnvVars("MONGOLS_URI"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output events as JSON lines",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "abort the run after this long (overrides config)",
			},
		},
		Action: runPlayground,
	}
}

func runPlayground(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return ErrNoPlaygroundFile
	}

	file := cmd.Args().First()

	code, err := os.ReadFile(file) //nolint:gosec // G304: file path from user input is expected
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	cfg, err := loadConfig(filepath.Dir(file))
	if err != nil {
		return err
	}

	connURI := cmd.String("uri")
	if connURI == "" {
		connURI = cfg.Connection.URI
	}

	if connURI == "" {
		return ErrNoConnectionURI
	}

	timeout := cfg.Playground.Timeout
	if cmd.IsSet("timeout") {
		timeout = cmd.Duration("timeout")
	}

	logger, _, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = logger.Sync()
	}()

	bridge := playground.NewBridge(
		playground.WithLogger(logger.Named("playground")),
		playground.WithCommand("", "worker", "--mongosh", cfg.Playground.Mongosh),
		playground.WithGracePeriod(cfg.Playground.GracePeriod),
		playground.WithTimeout(timeout),
	)
	defer bridge.Stop()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	// Create formatter/handler
	var (
		display    playground.Handler
		summarizer playground.Summarizer
	)

	if !cmd.Bool("json") && playground.IsTerminal(os.Stdout) {
		tuiHandler := playground.NewTUIHandler(os.Stdout, os.Stderr)
		tuiHandler.OnInterrupt(cancel)

		if err := tuiHandler.Start(); err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}

		display, summarizer = tuiHandler, tuiHandler
	} else {
		format := "text"
		if cmd.Bool("json") {
			format = "json"
		}

		formatHandler := playground.NewFormatHandler(playground.NewFormatter(format, os.Stdout), os.Stderr)
		display, summarizer = formatHandler, formatHandler
	}

	transcript := playground.NewTranscript()

	_, runErr := bridge.Evaluate(ctx, playground.Request{
		CodeToEvaluate:   string(code),
		ConnectionString: connURI,
		Source:           file,
	}, playground.NewMultiHandler(display, transcript))

	if err := summarizer.Summary(transcript); err != nil {
		return err
	}

	// Failures are rendered by the formatter; only precondition errors
	// that never produced an event are returned.
	if runErr != nil && transcript.Status == "" {
		return runErr
	}

	if !transcript.Ok() {
		return cli.Exit("", 1)
	}

	return nil
}
