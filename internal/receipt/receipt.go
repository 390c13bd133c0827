package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/cafe-diary/internal/interpret"
)

// ErrNotFound is returned when a receipt or visit does not exist
var ErrNotFound = errors.New("not found")

// Default map position for visits without coordinates (Seoul City Hall)
const (
	DefaultLatitude  = 37.5665
	DefaultLongitude = 126.9780
)

// MenuItem is one ordered item on a receipt, price in won
type MenuItem = interpret.MenuItem

// Receipt is an uploaded café receipt and what was read from it
type Receipt struct {
	ID          string     `json:"id"`
	StoreName   string     `json:"store_name"`
	VisitDate   time.Time  `json:"visit_date"`
	TotalAmount int        `json:"total_amount"` // won
	MenuItems   []MenuItem `json:"menu_items"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	RawText     string     `json:"raw_text,omitempty"`
	Placeholder bool       `json:"placeholder"` // menu items are placeholder data
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Visit is a diary entry for a café visit
type Visit struct {
	ID         string    `json:"id"`
	ReceiptID  string    `json:"receipt_id,omitempty"`
	CafeName   string    `json:"cafe_name"`
	VisitDate  time.Time `json:"visit_date"`
	MenuItems  string    `json:"menu_items"` // "name: price원" per line
	TotalPrice int       `json:"total_price"`
	Location   string    `json:"location"`
	Rating     int       `json:"rating"` // 0 when unrated, else 1-5
	Comment    string    `json:"comment"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VisitUpdate holds the fields of a partial visit update. Nil fields are left unchanged.
type VisitUpdate struct {
	CafeName   *string    `json:"cafe_name"`
	VisitDate  *time.Time `json:"visit_date"`
	MenuItems  *string    `json:"menu_items"`
	TotalPrice *int       `json:"total_price"`
	Location   *string    `json:"location"`
	Rating     *int       `json:"rating"`
	Comment    *string    `json:"comment"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
}

// FormatMenuItems renders items as "name: price원" lines
func FormatMenuItems(items []MenuItem) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%s: %d원", item.Name, item.Price)
	}
	return strings.Join(lines, "\n")
}

func validRating(r int) bool {
	return r >= 0 && r <= 5
}
