package scanning

import (
	"errors"

	"github.com/zombor/cafe-diary/internal/interpret"
)

// ErrUnsupportedFormat is returned when receipt data cannot be decoded as an image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt reads a receipt image/PDF and extracts a structured record
	ScanReceipt(imageData []byte, contentType string) (*interpret.Record, error)
	// Close closes the scanner and releases resources
	Close() error
}
