package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ggufmerge/internal/logger"
)

// appConfig is loaded once by the root command before any subcommand runs.
var appConfig Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "ggufmerge",
		Usage:  "Merge split GGUF model files into a single file",
		Flags:  loggingFlags(),
		Writer: stdout,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig()
			if err != nil {
				return ctx, err
			}
			appConfig = cfg
			applyLoggingConfig(cmd, cfg)

			level := logger.ParseLevel(logLevel)
			if debug {
				level = slog.LevelDebug
			}
			log, err := logger.ForFormat(stderr, logFormat, level)
			if err != nil {
				return ctx, err
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			mergeCmd(),
			inspectCmd(stdout),
			versionCmd(stdout),
		},
	}
}
