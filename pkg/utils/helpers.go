package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// ParseNumber parses a spreadsheet cell into a float. Empty cells and the
// placeholders "-" and "nan" are missing values (NaN, true). Thousand
// separators in the form "1,234,567" are accepted.
func ParseNumber(s string) (float64, bool) {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	switch strings.ToLower(s) {
	case "", "-", "nan":
		return math.NaN(), true
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// IsAlpha reports whether s is non-empty and made only of letters
func IsAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// IsDigits reports whether s is non-empty and made only of ASCII digits
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
