// Package money formats dollar amounts the way the memo and result page show them.
package money

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// USD renders v as "$" followed by the en-US grouped integer, e.g. "$12,346".
// Halves round away from zero.
func USD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0"
	}
	return printer.Sprintf("$%.0f", whole(v))
}

// Grouped renders v as an en-US grouped integer without a currency sign.
func Grouped(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return printer.Sprintf("%.0f", whole(v))
}

// whole rounds v and drops a negative zero.
func whole(v float64) float64 {
	return math.Round(v) + 0
}
