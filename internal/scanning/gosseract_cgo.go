//go:build cgo

package scanning

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"
)

func (g *Gosseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if g.TessdataDir != "" {
		if err := client.SetTessdataPrefix(g.TessdataDir); err != nil {
			return "", fmt.Errorf("setting tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(g.languages()...); err != nil {
		return "", fmt.Errorf("setting language: %w", err)
	}
	if g.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(g.PSM)); err != nil {
			return "", fmt.Errorf("setting page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract: %w", err)
	}
	return text, nil
}
