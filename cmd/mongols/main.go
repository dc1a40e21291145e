// Command mongols is a language server, script runner and linter for
// MongoDB playground files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rlch/mongols"

	// Register data sources.
	_ "github.com/rlch/mongols/databases/mongodb"
	_ "github.com/rlch/mongols/databases/snapshot"
)

func main() {
	cmd := &cli.Command{
		Name:  "mongols",
		Usage: "MongoDB playground language tools",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			workerCommand(),
			checkCommand(),
			runCommand(),
			snapshotCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		var exitErr cli.ExitCoder
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "mongols:", err)
			os.Exit(1)
		}

		os.Exit(exitErr.ExitCode())
	}
}

// newLogger builds a development logger on stderr. Stdout is left to the
// LSP and worker protocols.
func newLogger(cmd *cli.Command, cfg mongols.Config) (*zap.Logger, zap.AtomicLevel, error) {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, config.Level, fmt.Errorf("log level: %w", err)
		}

		config.Level = level
	}

	if cmd.Bool("debug") {
		config.Level.SetLevel(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, err
	}

	return logger, config.Level, nil
}

// loadConfig loads the nearest config walking up from dir. A missing file
// yields the defaults.
func loadConfig(dir string) (mongols.Config, error) {
	cfg, err := mongols.LoadConfig(dir)
	if errors.Is(err, mongols.ErrConfigNotFound) {
		return mongols.Config{}.WithDefaults(), nil
	}

	if err != nil {
		return mongols.Config{}, fmt.Errorf("loading config: %w", err)
	}

	return cfg.WithDefaults(), nil
}
