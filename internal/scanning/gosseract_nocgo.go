//go:build !cgo

package scanning

import (
	"context"
	"image"
)

func (g *Gosseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	return "", ErrGosseractUnavailable
}
