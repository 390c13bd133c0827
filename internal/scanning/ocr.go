package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/preprocess"
)

// DefaultOCRTimeout bounds a single recognizer call.
const DefaultOCRTimeout = 60 * time.Second

// OCR implements the Scanner interface with a local text recognizer and the
// receipt interpreter.
type OCR struct {
	recognizer  Recognizer
	normalizer  *preprocess.Normalizer
	interpreter *interpret.Interpreter
	timeout     time.Duration
	logger      *slog.Logger
}

// OCROption configures an OCR scanner.
type OCROption func(*OCR)

// WithOCRLogger sets the logger shared by the scanner, normalizer and
// interpreter unless those are supplied separately.
func WithOCRLogger(logger *slog.Logger) OCROption {
	return func(o *OCR) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOCRTimeout bounds each recognizer call. Non-positive values are ignored.
func WithOCRTimeout(d time.Duration) OCROption {
	return func(o *OCR) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInterpreter replaces the default interpreter.
func WithInterpreter(in *interpret.Interpreter) OCROption {
	return func(o *OCR) {
		if in != nil {
			o.interpreter = in
		}
	}
}

// WithNormalizer replaces the default image normalizer.
func WithNormalizer(n *preprocess.Normalizer) OCROption {
	return func(o *OCR) {
		if n != nil {
			o.normalizer = n
		}
	}
}

// NewOCR creates an OCR Scanner around recognizer
func NewOCR(recognizer Recognizer, opts ...OCROption) *OCR {
	o := &OCR{
		recognizer: recognizer,
		timeout:    DefaultOCRTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.normalizer == nil {
		o.normalizer = &preprocess.Normalizer{Logger: o.logger}
	}
	if o.interpreter == nil {
		o.interpreter = interpret.New(interpret.WithLogger(o.logger))
	}
	return o
}

// ScanReceipt runs ScanReceiptContext without a parent context.
func (o *OCR) ScanReceipt(imageData []byte, contentType string) (*interpret.Record, error) {
	return o.ScanReceiptContext(context.Background(), imageData, contentType)
}

// ScanReceiptContext decodes and normalizes the image, recognizes its text
// and interprets it. Only decoding errors and cancellation of ctx are
// returned. A recognizer failure yields the interpreter's fallback record.
func (o *OCR) ScanReceiptContext(ctx context.Context, imageData []byte, contentType string) (*interpret.Record, error) {
	img, err := decodeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}
	img = o.normalizer.Normalize(img)

	recognizeCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	text, err := o.recognizer.Recognize(recognizeCtx, img)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("recognizing text: %w", ctx.Err())
		}
		o.logger.Error("text recognition failed, using fallback record", "error", err)
		rec := o.interpreter.Fallback()
		return &rec, nil
	}

	rec := o.interpreter.Interpret(CleanText(text))
	return &rec, nil
}

func (o *OCR) Close() error {
	return nil
}
