// Package utils provides number formatting for overlay text.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number formats accepted by FormatCount.
const (
	FormatPlain   = "plain"
	FormatCompact = "compact"
)

// FormatCount renders n for an overlay. The plain format is the decimal
// integer ("1500"); the compact format uses Millify with one decimal ("1.5K").
// Unknown formats fall back to plain.
func FormatCount(n int, format string) string {
	if strings.EqualFold(format, FormatCompact) {
		return Millify(n, 1)
	}
	return strconv.Itoa(n)
}

// Millify converts a number to a human-readable string with SI suffixes.
// For example: 1000 -> "1K", 1500000 -> "1.5M".
func Millify(n int, precision int) string {
	if precision < 0 {
		precision = 2
	}

	abs := math.Abs(float64(n))
	sign := ""
	if n < 0 {
		sign = "-"
	}

	suffixes := []struct {
		threshold float64
		suffix    string
	}{
		{1e12, "T"},
		{1e9, "B"},
		{1e6, "M"},
		{1e3, "K"},
	}

	for _, s := range suffixes {
		if abs >= s.threshold {
			return sign + formatFloat(abs/s.threshold, precision) + s.suffix
		}
	}

	return fmt.Sprintf("%d", n)
}

func formatFloat(f float64, precision int) string {
	s := strconv.FormatFloat(f, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
