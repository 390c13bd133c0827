package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootConfig(stderr)

	serve := newServeCommand(root)
	scan := newScanCommand(root, stdout)
	interpretCmd := newInterpretCommand(root, stdin, stdout)
	root.command.Subcommands = []*ff.Command{serve, scan, interpretCmd}

	if err := root.command.Parse(args, ff.WithEnvVarPrefix("CAFE_DIARY")); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root.command.GetSelected()))
		if errors.Is(err, ff.ErrHelp) {
			return nil
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}

	if err := root.setupLogger(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return err
	}

	if err := root.command.Run(ctx); err != nil {
		if errors.Is(err, errNoSubcommand) {
			fmt.Fprintf(stderr, "%s\n", ffhelp.Command(root.command))
		}
		slog.Error("Command failed", "error", err)
		return err
	}
	return nil
}

var errNoSubcommand = errors.New("no subcommand given")

type rootConfig struct {
	stderr   io.Writer
	logLevel *string
	flags    *ff.FlagSet
	command  *ff.Command
}

func newRootConfig(stderr io.Writer) *rootConfig {
	var cfg rootConfig
	cfg.stderr = stderr
	cfg.flags = ff.NewFlagSet("cafe-diary")
	cfg.logLevel = cfg.flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
	cfg.flags.BoolLong("version", "Show version information")
	cfg.command = &ff.Command{
		Name:      "cafe-diary",
		Usage:     "cafe-diary [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "Café visit diary built from receipt photos",
		Flags:     cfg.flags,
		Exec: func(ctx context.Context, args []string) error {
			return errNoSubcommand
		},
	}
	return &cfg
}

func (c *rootConfig) setupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*c.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", *c.logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
