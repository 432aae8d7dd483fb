// Package core provides money parsing and display utilities.
//
// Amounts are float64 throughout the billing pipeline. Rounding to two
// decimals happens only when a value is shown to a person.
package core

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var displayPrinter = message.NewPrinter(language.English)

// ParseAmount converts user input such as "1,250.50", "₹ 50" or "-20" to a float.
// Thousands separators and the rupee sign are ignored. Returns ErrInvalidAmount
// for empty, non-numeric or non-finite input.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rs."), "Rs")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseQuantity parses a non-negative litre quantity ("1.5", "0.5").
func ParseQuantity(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidQuantity
	}
	return v, nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // avoid "-0.00"
	}
	return r
}

// FormatAmount renders a value with two decimals and digit grouping ("1,234.50").
func FormatAmount(v float64) string {
	return displayPrinter.Sprint(number.Decimal(Round2(v), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatRupees formats v as a rupee amount, e.g. "₹150.00" or "-₹20.00".
func FormatRupees(v float64) string {
	v = Round2(v)
	if v < 0 {
		return "-₹" + FormatAmount(-v)
	}
	return "₹" + FormatAmount(v)
}

// FormatLitres renders a quantity without trailing zeros ("2", "1.5").
func FormatLitres(q float64) string {
	return strconv.FormatFloat(math.Round(q*1000)/1000, 'f', -1, 64)
}
