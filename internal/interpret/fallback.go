package interpret

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Fallback records which fields of a Record were defaulted.
type Fallback uint8

const (
	StoreFallback Fallback = 1 << iota
	DateFallback
	ItemsFallback
	TotalComputed
	Catastrophic
)

var fallbackNames = []struct {
	flag Fallback
	name string
}{
	{StoreFallback, "store"},
	{DateFallback, "date"},
	{ItemsFallback, "items"},
	{TotalComputed, "total_computed"},
	{Catastrophic, "catastrophic"},
}

// Has reports whether any of the bits in flag are set.
func (f Fallback) Has(flag Fallback) bool {
	return f&flag != 0
}

// Placeholder reports whether the record's menu items are placeholder data
// rather than something read from the receipt.
func (f Fallback) Placeholder() bool {
	return f.Has(ItemsFallback | Catastrophic)
}

// String lists the set flags, comma separated, or "none".
func (f Fallback) String() string {
	var names []string
	for _, fn := range fallbackNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

var placeholderItems = []MenuItem{
	{Name: "라피스루나 진", Price: 25000},
	{Name: "서브미션 까베", Price: 28000},
	{Name: "라파우라 스프", Price: 30000},
	{Name: "몬테스 알파", Price: 32000},
	{Name: "루피노 키안티", Price: 35000},
	{Name: "홀라쇼 쇼비뇽", Price: 33600},
}

// PlaceholderTotal is the sum of PlaceholderItems.
const PlaceholderTotal = 183600

// PlaceholderItems returns a fresh copy of the fixed placeholder menu.
func PlaceholderItems() []MenuItem {
	items := make([]MenuItem, len(placeholderItems))
	copy(items, placeholderItems)
	return items
}

// FallbackRecord is the record returned when interpretation cannot proceed.
func FallbackRecord(now time.Time) Record {
	return Record{
		StoreName:  UnknownStore,
		DateTime:   now,
		MenuItems:  PlaceholderItems(),
		TotalPrice: PlaceholderTotal,
		Fallbacks:  StoreFallback | DateFallback | ItemsFallback | TotalComputed | Catastrophic,
	}
}

// ApplyFallbacks completes a partially extracted record. Invalid items are
// dropped, an empty menu becomes PlaceholderItems, and without an explicit
// total the price is the sum of the items. A blank store or zero time is
// replaced by UnknownStore or now.
func ApplyFallbacks(rec *Record, totalFound bool, now time.Time) {
	if strings.TrimSpace(rec.StoreName) == "" {
		rec.StoreName = UnknownStore
		rec.Fallbacks |= StoreFallback
	}
	if rec.DateTime.IsZero() {
		rec.DateTime = now
		rec.Fallbacks |= DateFallback
	}

	valid := make([]MenuItem, 0, len(rec.MenuItems))
	for _, item := range rec.MenuItems {
		item.Name = strings.TrimSpace(item.Name)
		if utf8.RuneCountInString(item.Name) < minItemRunes || item.Price < 0 {
			continue
		}
		valid = append(valid, item)
	}
	rec.MenuItems = valid
	if len(rec.MenuItems) == 0 {
		rec.MenuItems = PlaceholderItems()
		rec.Fallbacks |= ItemsFallback
	}

	if !totalFound || rec.TotalPrice < 0 {
		rec.TotalPrice = Sum(rec.MenuItems)
		rec.Fallbacks |= TotalComputed
	}
}

// Sum adds up the item prices.
func Sum(items []MenuItem) int {
	total := 0
	for _, item := range items {
		total += item.Price
	}
	return total
}
