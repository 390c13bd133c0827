package scanning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Default recognizer settings for Korean café receipts.
const (
	DefaultLang = "kor+eng"
	DefaultPSM  = 6
	DefaultOEM  = 3
)

// Recognizer maps an image to raw text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, stdin []byte, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, []byte, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	logger.Debug("running command", "cmd_line", strings.Join(append([]string{name}, args...), " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)
	if err != nil {
		logger.Error("exec failed",
			"cmd", name,
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		logger.Debug("exec ok",
			"cmd", name,
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// TesseractCLI recognizes text by piping a PNG through the tesseract binary.
type TesseractCLI struct {
	Path        string
	Lang        string
	PSM         int
	OEM         int
	TessdataDir string
	Runner      Runner
}

// NewTesseractCLI returns a TesseractCLI with the default language and modes.
// An empty path means "tesseract" on PATH.
func NewTesseractCLI(path string, logger *slog.Logger) *TesseractCLI {
	if path == "" {
		path = "tesseract"
	}
	return &TesseractCLI{
		Path:   path,
		Lang:   DefaultLang,
		PSM:    DefaultPSM,
		OEM:    DefaultOEM,
		Runner: ExecRunner{Logger: logger},
	}
}

func (t *TesseractCLI) args() []string {
	lang := t.Lang
	if lang == "" {
		lang = DefaultLang
	}
	// tesseract stdin stdout -l <lang> --oem <n> --psm <n>
	args := []string{"stdin", "stdout", "-l", lang}
	if t.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.OEM))
	}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	return args
}

func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, errb, err := runner.Run(ctx, t.Path, data, t.args()...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return "", fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 512))
		}
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

// ErrGosseractUnavailable is returned by Gosseract in builds without cgo.
var ErrGosseractUnavailable = errors.New("gosseract requires a cgo build with libtesseract")

// Gosseract recognizes text through the libtesseract bindings.
type Gosseract struct {
	Lang        string
	PSM         int
	TessdataDir string
}

// NewGosseract returns a Gosseract with the default language and page
// segmentation mode.
func NewGosseract(tessdataDir string) *Gosseract {
	return &Gosseract{Lang: DefaultLang, PSM: DefaultPSM, TessdataDir: tessdataDir}
}

func (g *Gosseract) languages() []string {
	lang := g.Lang
	if lang == "" {
		lang = DefaultLang
	}
	return strings.Split(lang, "+")
}
