package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/scanning"
)

type scanResult struct {
	File   string            `json:"file"`
	Record *interpret.Record `json:"record,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// contextScanner is implemented by scanners that stop when the caller's
// context is canceled.
type contextScanner interface {
	ScanReceiptContext(ctx context.Context, imageData []byte, contentType string) (*interpret.Record, error)
}

func scanFile(ctx context.Context, s scanning.Scanner, data []byte, contentType string) (*interpret.Record, error) {
	if cs, ok := s.(contextScanner); ok {
		return cs.ScanReceiptContext(ctx, data, contentType)
	}
	return s.ScanReceipt(data, contentType)
}

func newScanCommand(root *rootConfig, stdout io.Writer) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(root.flags)
	concurrency := fs.IntLong("concurrency", 2, "Receipts scanned at once")
	scanner := addScannerFlags(fs)

	return &ff.Command{
		Name:      "scan",
		Usage:     "cafe-diary scan [FLAGS] FILE...",
		ShortHelp: "Read receipt images and print the records as JSON",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("scan: at least one file is required")
			}
			s, err := scanner.newScanner(slog.Default())
			if err != nil {
				return err
			}
			defer s.Close()

			results := make([]scanResult, len(args))
			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(max(*concurrency, 1))
			for i, file := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					results[i].File = file
					data, err := os.ReadFile(file)
					if err != nil {
						results[i].Error = err.Error()
						return nil
					}
					rec, err := scanFile(ctx, s, data, mime.TypeByExtension(filepath.Ext(file)))
					if ctx.Err() != nil {
						return ctx.Err()
					}
					if err != nil {
						slog.Warn("Failed to scan receipt", "file", file, "error", err)
						results[i].Error = err.Error()
						return nil
					}
					results[i].Record = rec
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func newInterpretCommand(root *rootConfig, stdin io.Reader, stdout io.Writer) *ff.Command {
	fs := ff.NewFlagSet("interpret").SetParent(root.flags)

	return &ff.Command{
		Name:      "interpret",
		Usage:     "cafe-diary interpret [FILE]",
		ShortHelp: "Interpret OCR text from FILE or stdin and print the record as JSON",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			in := stdin
			if len(args) > 0 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading text: %w", err)
			}

			rec := interpret.New(interpret.WithLogger(slog.Default())).Interpret(scanning.CleanText(string(text)))
			slog.Debug("Interpreted receipt", "fallbacks", rec.Fallbacks.String())

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}
