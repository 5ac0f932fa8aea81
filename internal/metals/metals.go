package metals

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Metal describes one tracked precious metal.
type Metal struct {
	ID          string
	Name        string
	Symbol      string
	StooqSymbol string
}

// Range bounds the plausible USD/oz spot price for a symbol. Quotes outside
// the range are treated as upstream garbage, not market moves.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether p falls inside the range (inclusive).
func (r Range) Contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(r.Min) && p.LessThanOrEqual(r.Max)
}

// All lists the tracked metals in display order.
var All = []Metal{
	{ID: "gold", Name: "Gold", Symbol: "XAU", StooqSymbol: "xauusd"},
	{ID: "silver", Name: "Silver", Symbol: "XAG", StooqSymbol: "xagusd"},
	{ID: "platinum", Name: "Platinum", Symbol: "XPT", StooqSymbol: "xptusd"},
	{ID: "palladium", Name: "Palladium", Symbol: "XPD", StooqSymbol: "xpdusd"},
}

var bySymbol = func() map[string]Metal {
	m := make(map[string]Metal, len(All))
	for _, metal := range All {
		m[metal.Symbol] = metal
	}
	return m
}()

// DefaultRanges are the provider-independent plausibility bounds, overridable
// via configuration.
var DefaultRanges = map[string]Range{
	"XAU": {Min: decimal.NewFromInt(1000), Max: decimal.NewFromInt(10000)},
	"XAG": {Min: decimal.NewFromInt(5), Max: decimal.NewFromInt(500)},
	"XPT": {Min: decimal.NewFromInt(300), Max: decimal.NewFromInt(5000)},
	"XPD": {Min: decimal.NewFromInt(300), Max: decimal.NewFromInt(5000)},
}

// Lookup resolves a symbol (case-insensitive) to its metal.
func Lookup(symbol string) (Metal, bool) {
	m, ok := bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return m, ok
}

// Symbols returns the tracked symbols in display order.
func Symbols() []string {
	out := make([]string, len(All))
	for i, m := range All {
		out[i] = m.Symbol
	}
	return out
}
