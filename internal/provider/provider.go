// Package provider defines the contract every upstream price source
// implements and the normalized quote shape they all produce.
package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"metalpulse/internal/series"
)

// Quote is the normalized current price plus day-over-day change for one
// symbol. All monetary fields are USD per troy ounce, rounded to 2 decimals
// at construction.
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	EffectiveDate string
}

// Adapter is one upstream source. Implementations normalize their native
// response shape (CSV or JSON, string- or number-typed fields) into Quote
// and series.Series, and must keep per-symbol fetches independent: a bad
// payload for one symbol must not corrupt another's result.
type Adapter interface {
	Name() string

	// FetchQuote returns the latest quote for one symbol.
	FetchQuote(ctx context.Context, symbol string) (Quote, error)

	// FetchSeries returns at least the last `days` day-level points for one
	// symbol, oldest first. Latest-only sources return a FetchError with
	// ErrHistoryUnsupported wrapped inside.
	FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error)
}

// DeriveQuote builds a quote from the last two points of a series, for
// sources that do not supply ready-made change fields. The window's
// high/low fill the quote's High/Low.
func DeriveQuote(symbol string, s series.Series) (Quote, error) {
	if len(s) < 2 {
		return Quote{}, &ParseError{Provider: "", Reason: "series has fewer than two points for " + symbol}
	}

	last := s[len(s)-1]
	prev := s[len(s)-2]

	change := last.Close.Sub(prev.Close)
	changePct := decimal.Zero
	if prev.Close.IsPositive() {
		changePct = change.Div(prev.Close).Mul(decimal.NewFromInt(100))
	}

	high, low, _ := s.HighLow()

	return Quote{
		Symbol:        symbol,
		Price:         last.Close.Round(2),
		Change:        change.Round(2),
		ChangePercent: changePct.Round(2),
		High:          high.Round(2),
		Low:           low.Round(2),
		EffectiveDate: last.Date,
	}, nil
}
