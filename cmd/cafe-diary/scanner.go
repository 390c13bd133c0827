package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/preprocess"
	"github.com/zombor/cafe-diary/internal/scanning"
)

// scannerFlags are shared by every subcommand that reads receipts.
type scannerFlags struct {
	scannerType *string
	ocrEngine   *string
	tesseract   *string
	tessdata    *string
	ocrLang     *string
	ocrPSM      *int
	ocrOEM      *int
	ocrTimeout  *time.Duration
	maxWidth    *int
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string
}

func addScannerFlags(fs *ff.FlagSet) *scannerFlags {
	return &scannerFlags{
		scannerType: fs.StringLong("scanner", "ocr", "Scanner type: 'ocr', 'gemini' or 'ollama'"),
		ocrEngine:   fs.StringLong("ocr-engine", "cli", "OCR engine: 'cli' (tesseract binary) or 'gosseract' (cgo)"),
		tesseract:   fs.StringLong("tesseract", "", "Path to the tesseract binary (searched for when empty)"),
		tessdata:    fs.StringLong("tessdata", "", "Tesseract language data directory"),
		ocrLang:     fs.StringLong("ocr-lang", scanning.DefaultLang, "Tesseract languages"),
		ocrPSM:      fs.IntLong("ocr-psm", scanning.DefaultPSM, "Tesseract page segmentation mode"),
		ocrOEM:      fs.IntLong("ocr-oem", scanning.DefaultOEM, "Tesseract OCR engine mode"),
		ocrTimeout:  fs.DurationLong("ocr-timeout", scanning.DefaultOCRTimeout, "Timeout for one OCR run"),
		maxWidth:    fs.IntLong("max-width", preprocess.MaxWidth, "Widest image handed to OCR, in pixels"),
		geminiKey:   fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel: fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:   fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: fs.StringLong("ollama-model", "qwen2-vl:7b", "Ollama vision model name"),
	}
}

func (f *scannerFlags) newOCR(logger *slog.Logger) (*scanning.OCR, error) {
	var recognizer scanning.Recognizer
	switch *f.ocrEngine {
	case "cli":
		path, err := findTesseract(*f.tesseract)
		if err != nil {
			return nil, err
		}
		cli := scanning.NewTesseractCLI(path, logger)
		cli.Lang = *f.ocrLang
		cli.PSM = *f.ocrPSM
		cli.OEM = *f.ocrOEM
		cli.TessdataDir = *f.tessdata
		logger.Info("Using tesseract binary", "path", path, "lang", cli.Lang)
		recognizer = cli
	case "gosseract":
		g := scanning.NewGosseract(*f.tessdata)
		g.Lang = *f.ocrLang
		g.PSM = *f.ocrPSM
		recognizer = g
	default:
		return nil, fmt.Errorf("invalid OCR engine %q, valid: cli or gosseract", *f.ocrEngine)
	}

	return scanning.NewOCR(recognizer,
		scanning.WithOCRLogger(logger),
		scanning.WithOCRTimeout(*f.ocrTimeout),
		scanning.WithInterpreter(interpret.New(interpret.WithLogger(logger))),
		scanning.WithNormalizer(&preprocess.Normalizer{Logger: logger, MaxWidth: *f.maxWidth}),
	), nil
}

func (f *scannerFlags) newScanner(logger *slog.Logger) (scanning.Scanner, error) {
	switch *f.scannerType {
	case "ocr":
		return f.newOCR(logger)
	case "gemini":
		apiKey := *f.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		logger.Info("Initializing Gemini scanner...", "model", *f.geminiModel)
		return scanning.NewGemini(apiKey, *f.geminiModel, logger)
	case "ollama":
		logger.Info("Initializing Ollama scanner...", "url", *f.ollamaURL, "model", *f.ollamaModel)
		return scanning.NewOllama(*f.ollamaURL, *f.ollamaModel, logger)
	default:
		return nil, fmt.Errorf("invalid scanner type %q, valid: ocr, gemini or ollama", *f.scannerType)
	}
}

var tesseractLocations = map[string][]string{
	"darwin":  {"/opt/homebrew/bin/tesseract", "/usr/local/bin/tesseract"},
	"linux":   {"/usr/bin/tesseract", "/usr/local/bin/tesseract"},
	"windows": {`C:\Program Files\Tesseract-OCR\tesseract.exe`, `C:\Program Files (x86)\Tesseract-OCR\tesseract.exe`},
}

// findTesseract returns the configured path, the binary on PATH, or the
// first well-known install location that exists.
func findTesseract(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if path, err := exec.LookPath("tesseract"); err == nil {
		return path, nil
	}
	for _, path := range tesseractLocations[runtime.GOOS] {
		if info, err := os.Stat(filepath.Clean(path)); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.New("tesseract not found, install it or set --tesseract")
}
