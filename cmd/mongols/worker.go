package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/playground"
)

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Serve one playground run over stdio (started by the language server)",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mongosh",
				Usage: "shell binary used to evaluate code",
				Value: mongols.DefaultMongosh,
			},
		},
		Action: runWorker,
	}
}

func runWorker(ctx context.Context, cmd *cli.Command) error {
	logger, _, err := newLogger(cmd, mongols.Config{})
	if err != nil {
		return err
	}

	defer func() {
		_ = logger.Sync()
	}()

	evaluator := playground.NewMongosh(cmd.String("mongosh"), logger.Named("mongosh"))

	return playground.NewWorker(evaluator, logger.Named("worker")).
		Serve(ctx, &readWriteCloser{os.Stdin, os.Stdout})
}
