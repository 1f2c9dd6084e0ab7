// Package parse turns loosely formatted spreadsheet cells into typed values.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"site-delivery-backend/internal/model"
)

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	dayFirstRe  = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{2}|\d{4})$`)
	serialRe    = regexp.MustCompile(`^\d{1,6}(?:\.\d+)?$`)
	weightRe    = regexp.MustCompile(`(?i)^([-+]?[\d.,]+)\s*(kg|t)?$`)
	spaceRe     = regexp.MustCompile(`\s+`)
	excelEpoch  = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	tonneFactor = decimal.NewFromInt(1000)
)

// Date parses an ISO date, a day-first dotted or slashed date, or an Excel
// serial day number, and returns it in model.DateLayout.
func Date(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	var y, m, d int
	switch {
	case isoDateRe.MatchString(s):
		parts := isoDateRe.FindStringSubmatch(s)
		y, m, d = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
	case dayFirstRe.MatchString(s):
		parts := dayFirstRe.FindStringSubmatch(s)
		d, m, y = atoi(parts[1]), atoi(parts[2]), atoi(parts[3])
		if len(parts[3]) == 2 {
			y += 2000
		}
	case serialRe.MatchString(s):
		days, err := strconv.ParseFloat(s, 64)
		if err != nil || days < 1 {
			return "", fmt.Errorf("unable to parse date: %q", raw)
		}
		return excelEpoch.AddDate(0, 0, int(days)).Format(model.DateLayout), nil
	default:
		return "", fmt.Errorf("unable to parse date: %q", raw)
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", fmt.Errorf("invalid calendar date: %q", raw)
	}
	return t.Format(model.DateLayout), nil
}

// Weight parses a weight in kilograms. Spaces are thousands separators; when
// both ',' and '.' appear the later one is the decimal mark, and a lone comma
// is a decimal comma. A "t" suffix means tonnes. An empty cell is zero.
func Weight(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "\u00a0", " ")
	if s == "" {
		return decimal.Zero, nil
	}

	m := weightRe.FindStringSubmatch(strings.TrimSpace(joinDigitGroups(s)))
	if m == nil {
		return decimal.Zero, fmt.Errorf("unable to parse weight: %q", raw)
	}
	num := normalizeDecimal(m[1])

	w, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse weight %q: %w", raw, err)
	}
	if strings.EqualFold(m[2], "t") {
		w = w.Mul(tonneFactor)
	}
	return w, nil
}

// Text collapses runs of whitespace and trims the cell.
func Text(raw string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
}

// joinDigitGroups removes spaces that sit between digits ("1 234" -> "1234").
func joinDigitGroups(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r == ' ' && i > 0 && i < len(runes)-1 && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeDecimal(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") > 1:
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
