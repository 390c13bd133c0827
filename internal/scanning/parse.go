package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/cafe-diary/internal/interpret"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are reading a receipt from a café, most likely in Korean. Carefully read all text in the image and extract the following information:

1. **Store Name**: The café or store name, usually at the top of the receipt (e.g. "스타벅스 강남점", "카페 모모"). Copy it as printed, including the branch name.

2. **Date and Time**: The transaction date and time. Return it as "YYYY-MM-DD HH:MM" in 24-hour format.

3. **Menu Items**: Every ordered item with its price in Korean won as an integer (e.g. 4500 for "4,500원"). Do not include totals, tax (부가세), discounts or payment lines.

4. **Total Price**: The final amount paid (합계, 결제금액, Total) in won as an integer.

Return ONLY valid JSON in this exact format:
{
  "store_name": "Store Name",
  "datetime": "YYYY-MM-DD HH:MM",
  "menu_items": [{"name": "Item", "price": 0}],
  "total_price": 0
}

Important:
- Prices must be integers (not strings), without commas or currency symbols
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

var receiptSchema = map[string]any{
	"type":     "object",
	"required": []string{"store_name", "menu_items"},
	"properties": map[string]any{
		"store_name": map[string]any{"type": []string{"string", "null"}},
		"datetime":   map[string]any{"type": []string{"string", "null"}},
		"menu_items": map[string]any{
			"type": []string{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "price"},
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"price": map[string]any{"type": "integer", "minimum": 0},
				},
			},
		},
		"total_price": map[string]any{"type": []string{"integer", "null"}, "minimum": 0},
	},
}

var compiledReceiptSchema = mustCompileSchema(receiptSchema)

func mustCompileSchema(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	return compiler.MustCompile("receipt.json")
}

// modelReceipt is the JSON shape the vision models are asked for
type modelReceipt struct {
	StoreName  string               `json:"store_name"`
	DateTime   string               `json:"datetime"`
	MenuItems  []interpret.MenuItem `json:"menu_items"`
	TotalPrice *int                 `json:"total_price"`
}

var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04",
	"2006.01.02 15:04",
	"2006-01-02",
}

// parseReceiptJSON parses and validates a model response, then fills any
// missing fields the same way the OCR interpreter does
func parseReceiptJSON(text string) (*interpret.Record, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	raw := []byte(text[startIdx : endIdx+1])

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if err := compiledReceiptSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var data modelReceipt
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	rec := &interpret.Record{
		StoreName: strings.TrimSpace(data.StoreName),
		MenuItems: data.MenuItems,
	}
	if data.DateTime != "" {
		for _, layout := range dateTimeLayouts {
			if t, err := time.ParseInLocation(layout, strings.TrimSpace(data.DateTime), time.Local); err == nil {
				rec.DateTime = t
				break
			}
		}
	}
	if data.TotalPrice != nil {
		rec.TotalPrice = *data.TotalPrice
	}

	interpret.ApplyFallbacks(rec, data.TotalPrice != nil, time.Now())
	return rec, nil
}
