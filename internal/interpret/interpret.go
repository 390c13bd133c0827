// Package interpret turns raw OCR text from café receipts into structured
// records: store name, visit date and time, menu items and the total paid.
//
// Interpretation never fails. Whatever cannot be recovered from the text is
// filled with a deterministic default and flagged in Record.Fallbacks.
package interpret

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// UnknownStore is used when no line looks like a store name.
	UnknownStore = "Unknown Store"

	storeScanLines = 10
	minStoreRunes  = 2
	maxStoreRunes  = 20
	minItemRunes   = 2
	minItemPrice   = 1000
)

// MenuItem is one purchased line of a receipt. Price is in won.
type MenuItem struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// Record is the structured result of interpreting one receipt.
type Record struct {
	StoreName  string     `json:"store_name"`
	DateTime   time.Time  `json:"datetime"`
	MenuItems  []MenuItem `json:"menu_items"`
	TotalPrice int        `json:"total_price"`
	RawText    string     `json:"raw_text,omitempty"`
	Fallbacks  Fallback   `json:"-"`
}

// Interpreter extracts receipt fields from text. The zero value is not
// usable; construct one with New.
type Interpreter struct {
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger for per-stage debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithClock sets the source of "now" used when a receipt carries no date.
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) {
		if now != nil {
			in.now = now
		}
	}
}

// WithLocation sets the time zone receipt timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(in *Interpreter) {
		if loc != nil {
			in.loc = loc
		}
	}
}

// New returns an Interpreter using slog.Default, time.Now and time.Local
// unless overridden by opts.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		logger: slog.Default(),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Interpret extracts a Record from text using a default Interpreter.
func Interpret(text string) Record {
	return New().Interpret(text)
}

// Interpret extracts a Record from text. It always returns a complete record.
// An unexpected failure yields FallbackRecord with the Catastrophic flag set.
func (in *Interpreter) Interpret(text string) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("receipt interpretation failed, using fallback record", "panic", r)
			rec = FallbackRecord(in.safeNow())
			rec.RawText = text
		}
	}()

	in.logger.Debug("interpreting receipt text", "text", text)

	lines := SplitLines(text)
	in.logger.Debug("lines segmented", "count", len(lines))

	rec.RawText = text

	store, ok := in.StoreName(lines)
	rec.StoreName = store
	if !ok {
		rec.Fallbacks |= StoreFallback
	}

	if dt, ok := in.DateTime(lines); ok {
		rec.DateTime = dt
	} else {
		rec.DateTime = in.now()
		rec.Fallbacks |= DateFallback
		in.logger.Debug("datetime not found, using current time", "datetime", rec.DateTime)
	}

	items, total, totalFound := in.Items(lines)
	rec.MenuItems = items
	rec.TotalPrice = total

	ApplyFallbacks(&rec, totalFound, rec.DateTime)
	if rec.Fallbacks.Has(ItemsFallback) {
		in.logger.Debug("no menu items found, using placeholder items")
	}
	if rec.Fallbacks.Has(TotalComputed) {
		in.logger.Debug("total not found, using sum of items", "total_price", rec.TotalPrice)
	}

	in.logger.Debug("receipt interpreted",
		"store_name", rec.StoreName,
		"datetime", rec.DateTime,
		"menu_items", len(rec.MenuItems),
		"total_price", rec.TotalPrice,
		"fallbacks", rec.Fallbacks.String(),
	)
	return rec
}

// Fallback returns FallbackRecord stamped with the interpreter's clock.
func (in *Interpreter) Fallback() Record {
	return FallbackRecord(in.safeNow())
}

func (in *Interpreter) safeNow() (t time.Time) {
	defer func() {
		if recover() != nil {
			t = time.Now()
		}
	}()
	return in.now()
}

// SplitLines splits text on newlines, trims each line and drops the empty
// ones. Invalid UTF-8 bytes are removed. Order is preserved.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(strings.ToValidUTF8(l, "")); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// StoreName scans the first lines for a store name. A brand or café pattern
// match wins immediately. Otherwise the first short, digit-free line is used.
// The boolean is false when UnknownStore is returned.
func (in *Interpreter) StoreName(lines []string) (string, bool) {
	candidate, candidateLine := "", -1
	for i, line := range lines {
		if i >= storeScanLines {
			break
		}
		if hasSkipKeyword(line) {
			continue
		}
		if matchesStorePattern(line) {
			in.logger.Debug("store name found", "store_name", line, "line", i, "rule", "pattern")
			return line, true
		}
		if candidateLine < 0 && looksLikeStoreName(line) {
			candidate, candidateLine = line, i
		}
	}
	if candidateLine >= 0 {
		in.logger.Debug("store name found", "store_name", candidate, "line", candidateLine, "rule", "short line")
		return candidate, true
	}
	in.logger.Debug("store name not found, using default", "store_name", UnknownStore)
	return UnknownStore, false
}

func looksLikeStoreName(line string) bool {
	n := utf8.RuneCountInString(line)
	return n >= minStoreRunes && n <= maxStoreRunes && !strings.ContainsFunc(line, unicode.IsDigit)
}

// DateTime returns the first line holding both a date and a time that parse
// into a valid timestamp. Seconds are honored when present.
func (in *Interpreter) DateTime(lines []string) (time.Time, bool) {
	for i, line := range lines {
		date := datePattern.FindString(line)
		clock := timePattern.FindString(line)
		if date == "" || clock == "" {
			continue
		}
		layout := "2006-01-02 15:04"
		if len(clock) > len("15:04") {
			layout = "2006-01-02 15:04:05"
		}
		value := dateSeparators.Replace(date) + " " + clock
		t, err := time.ParseInLocation(layout, value, in.loc)
		if err != nil {
			in.logger.Debug("datetime candidate rejected", "line", i, "value", value, "error", err)
			continue
		}
		in.logger.Debug("datetime found", "datetime", t, "line", i)
		return t, true
	}
	return time.Time{}, false
}

// Items collects menu items and the explicit total. The last price on a line
// is its price. Lines with boilerplate keywords are ignored, and the last
// total line wins.
func (in *Interpreter) Items(lines []string) (items []MenuItem, total int, totalFound bool) {
	items = []MenuItem{}
	for i, line := range lines {
		if hasSkipKeyword(line) {
			continue
		}
		matches := pricePattern.FindAllString(line, -1)
		if len(matches) == 0 {
			continue
		}
		price, err := parsePrice(matches[len(matches)-1])
		if err != nil {
			in.logger.Debug("price rejected", "line", i, "value", matches[len(matches)-1], "error", err)
			continue
		}
		name := strings.TrimSpace(pricePattern.ReplaceAllString(line, ""))

		switch {
		case totalPattern.MatchString(line):
			total, totalFound = price, true
			in.logger.Debug("total found", "total_price", price, "line", i)
		case utf8.RuneCountInString(name) >= minItemRunes && price >= minItemPrice:
			items = append(items, MenuItem{Name: name, Price: price})
			in.logger.Debug("menu item found", "name", name, "price", price, "line", i)
		}
	}
	return items, total, totalFound
}

func parsePrice(s string) (int, error) {
	return strconv.Atoi(priceMarkers.Replace(s))
}
