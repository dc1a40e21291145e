package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/databases/snapshot"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Write a YAML snapshot of a deployment's catalog for offline completions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "uri",
				Usage:   "connection URI (overrides config)",
				Sources: cli.EnvVars("MONGOLS_URI"),
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "data source to read from (overrides config)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file (default: stdout)",
			},
		},
		Action: runSnapshot,
	}
}

func runSnapshot(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, err := loadConfig(".")
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

	sourceName := cmd.String("source")
	if sourceName == "" {
		sourceName = cfg.Connection.DataSource
	}

	src, err := mongols.OpenDataSource(ctx, sourceName, mongols.DataSourceConfig{
		URI:        connURI,
		SampleSize: cfg.Schema.SampleSize,
	})
	if err != nil {
		return fmt.Errorf("failed to open data source: %w", err)
	}

	defer func() { _ = src.Close(ctx) }()

	s, err := snapshot.Capture(ctx, src)
	if err != nil {
		return fmt.Errorf("capturing catalog: %w", err)
	}

	var w io.Writer = os.Stdout

	if out := cmd.String("out"); out != "" {
		f, err := os.Create(out) //nolint:gosec // G304: file path from user input is expected
		if err != nil {
			return err
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		w = f
	}

	return snapshot.Write(w, s)
}
