package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/preprocess"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	normalizer *preprocess.Normalizer
	logger     *slog.Logger
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client:     client,
		model:      model,
		normalizer: &preprocess.Normalizer{Logger: logger},
		logger:     logger,
	}, nil
}

// ScanReceipt sends the normalized receipt image to Gemini and parses the reply
func (g *Gemini) ScanReceipt(imageData []byte, contentType string) (*interpret.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	finalImageData, err := prepareImageData(imageData, contentType, g.normalizer)
	if err != nil {
		return nil, err
	}

	// genai.ImageData takes the format suffix, not the MIME type
	parts := []genai.Part{
		genai.ImageData("png", finalImageData),
		genai.Text(receiptScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	rec, err := parseReceiptJSON(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	g.logger.Debug("gemini receipt parsed", "store_name", rec.StoreName, "menu_items", len(rec.MenuItems), "fallbacks", rec.Fallbacks.String())

	return rec, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
