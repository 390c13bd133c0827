// Package preprocess prepares receipt images for text recognition.
package preprocess

import (
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"
)

// MaxWidth is the widest image handed to the recognizer.
const MaxWidth = 1000

// Normalizer converts images to opaque three-channel color and caps their
// width. The zero value uses MaxWidth and slog.Default.
type Normalizer struct {
	Logger   *slog.Logger
	MaxWidth int
}

// Normalize runs a zero-value Normalizer on img.
func Normalize(img image.Image) image.Image {
	return (&Normalizer{}).Normalize(img)
}

// Normalize returns img unchanged when it is already three-channel and no
// wider than the limit. Otherwise it returns a new *image.NRGBA, flattened
// onto white and downscaled with Lanczos resampling to the limit width while
// preserving the aspect ratio.
func (n *Normalizer) Normalize(img image.Image) image.Image {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxWidth := n.MaxWidth
	if maxWidth <= 0 {
		maxWidth = MaxWidth
	}

	b := img.Bounds()
	logger.Debug("normalizing image", "mode", ColorMode(img), "width", b.Dx(), "height", b.Dy())

	out := img
	if !IsThreeChannel(img) {
		out = imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), img, image.Pt(0, 0), 1.0)
		logger.Debug("converted image to RGB", "from", ColorMode(img))
	}

	if w := b.Dx(); w > maxWidth {
		h := int(float64(b.Dy()) * float64(maxWidth) / float64(w))
		if h < 1 {
			h = 1
		}
		out = imaging.Resize(out, maxWidth, h, imaging.Lanczos)
		logger.Debug("resized image", "width", maxWidth, "height", h)
	}

	return out
}

// IsThreeChannel reports whether img is opaque color data with no alpha or
// palette to resolve.
func IsThreeChannel(img image.Image) bool {
	switch im := img.(type) {
	case *image.YCbCr:
		return true
	case *image.RGBA:
		return im.Opaque()
	case *image.NRGBA:
		return im.Opaque()
	case *image.RGBA64:
		return im.Opaque()
	case *image.NRGBA64:
		return im.Opaque()
	default:
		return false
	}
}

// ColorMode names the color layout of img for logging.
func ColorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray:
		return "L"
	case *image.Gray16:
		return "I;16"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "YCbCr"
	case *image.NYCbCrA:
		return "YCbCrA"
	case *image.Alpha, *image.Alpha16:
		return "A"
	default:
		if IsThreeChannel(img) {
			return "RGB"
		}
		return "RGBA"
	}
}
