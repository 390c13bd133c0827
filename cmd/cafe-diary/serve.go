package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/zombor/cafe-diary/internal/receipt"
)

type serveConfig struct {
	port        *int
	dbPath      *string
	dbDriver    *string
	storagePath *string
	authUser    *string
	authPass    *string
	scanner     *scannerFlags
}

func newServeCommand(root *rootConfig) *ff.Command {
	var cfg serveConfig
	fs := ff.NewFlagSet("serve").SetParent(root.flags)
	cfg.port = fs.IntLong("port", 8080, "HTTP server port")
	cfg.dbPath = fs.StringLong("db", "cafe-diary.db", "Database file path")
	cfg.dbDriver = fs.StringLong("db-driver", "bolt", "Database driver: 'bolt' or 'sqlite'")
	cfg.storagePath = fs.StringLong("storage", "./uploads", "Storage directory path")
	cfg.authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
	cfg.authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
	cfg.scanner = addScannerFlags(fs)

	return &ff.Command{
		Name:      "serve",
		Usage:     "cafe-diary serve [FLAGS]",
		ShortHelp: "Run the diary HTTP API",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			return cfg.run(ctx)
		},
	}
}

func openDB(driver, path string) (receipt.DB, error) {
	switch driver {
	case "bolt":
		return receipt.NewBoltDB(path)
	case "sqlite":
		return receipt.NewSQLiteDB(path)
	default:
		return nil, fmt.Errorf("invalid database driver %q, valid: bolt or sqlite", driver)
	}
}

func (c *serveConfig) run(ctx context.Context) error {
	logger := slog.Default()

	logger.Info("Initializing database...", "driver", *c.dbDriver, "path", *c.dbPath)
	db, err := openDB(*c.dbDriver, *c.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	scanner, err := c.scanner.newScanner(logger)
	if err != nil {
		return fmt.Errorf("initializing scanner: %w", err)
	}
	defer scanner.Close()

	logger.Info("Initializing storage...", "path", *c.storagePath)
	store, err := receipt.NewLocalStorage(*c.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	service := receipt.NewService(db, scanner, store).WithLogger(logger)
	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *c.authUser,
		Password: *c.authPass,
	})

	addr := fmt.Sprintf(":%d", *c.port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.ListenAndServe()
	}()

	logger.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *c.authUser != "" || *c.authPass != "" {
		logger.Info("Basic auth enabled", "user", *c.authUser)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
