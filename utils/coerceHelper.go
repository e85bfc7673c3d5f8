package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Lenient field coercion. Parse failures become nulls, never errors: a row
// must survive coercion so validation can attribute an explicit reason later.

const notAvailable = "na"

var dateFormats = []string{
	"01/02/2006",
	"2006-01-02",
}

var timestampFormats = []string{
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006-01-02",
}

// CellAt returns the field at position idx, or "" when the row is shorter.
// Source rows are position-significant but trailing blank cells are omitted
// by both providers.
func CellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// RawCell is CellAt for staged string columns: a missing cell is NULL, a
// present cell keeps its raw value untouched (including blanks).
func RawCell(row []string, idx int) *string {
	if idx < len(row) {
		s := row[idx]
		return &s
	}
	return nil
}

// CleanString trims and returns nil for blank values.
func CleanString(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	return &s
}

// CleanLower trims and lower-cases (email fields).
func CleanLower(raw string) *string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	return &s
}

// CleanTitle trims and title-cases (make, model, color, city, status fields).
func CleanTitle(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = TitleCase(s)
	return &s
}

// CleanUpper trims and upper-cases (plate fields).
func CleanUpper(raw string) *string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	return &s
}

func isNullToken(s string) bool {
	return s == "" || strings.ToLower(s) == notAvailable
}

// ParseLenientDecimal maps "", "NA" and unparseable values to an invalid
// NullDecimal.
func ParseLenientDecimal(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if isNullToken(s) {
		return decimal.NullDecimal{}
	}
	dec, err := ParseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: dec, Valid: true}
}

// ParseLenientInt tolerates float renderings of whole numbers ("4.0" -> 4).
func ParseLenientInt(raw string) *int {
	s := strings.TrimSpace(raw)
	if isNullToken(s) {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

// ParseLenientBool accepts {true,1,yes} / {false,0,no}, case-insensitive;
// anything else (including blank) is null.
func ParseLenientBool(raw string) *bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return NewTrue()
	case "false", "0", "no":
		return NewFalse()
	default:
		return nil
	}
}

// ParseLenientDate tries month/day/year then ISO; first match wins.
func ParseLenientDate(raw string) *time.Time {
	return parseWithFormats(raw, dateFormats)
}

// ParseLenientTimestamp additionally accepts a time-of-day suffix and falls
// back to date-only forms.
func ParseLenientTimestamp(raw string) *time.Time {
	return parseWithFormats(raw, timestampFormats)
}

func parseWithFormats(raw string, formats []string) *time.Time {
	s := strings.TrimSpace(raw)
	if isNullToken(s) {
		return nil
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
