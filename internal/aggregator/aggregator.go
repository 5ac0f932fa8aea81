// Package aggregator walks an ordered list of provider adapters, applies the
// circuit breaker, validates merged snapshots, and returns the first
// provider's result that passes.
package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"metalpulse/internal/breaker"
	"metalpulse/internal/metals"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

// History day-count bounds exposed to API callers.
const (
	MinHistoryDays = 2
	MaxHistoryDays = 365
)

// Options tune aggregation behaviour.
type Options struct {
	// Symbols is the exact set a quote snapshot must cover.
	Symbols []string
	// Ranges bounds the plausible price per symbol; missing symbols fall
	// back to metals.DefaultRanges.
	Ranges map[string]metals.Range
	// MaxChangePercent is the sanitizer threshold; day-over-day swings
	// beyond it are zeroed as bad upstream comparisons. Defaults to 15.
	MaxChangePercent decimal.Decimal
}

// Aggregator is the cross-provider fallback engine. Construct one per
// process (or per test); it carries no global state.
type Aggregator struct {
	adapters []provider.Adapter
	breaker  *breaker.Breaker
	opts     Options
	logger   zerolog.Logger
}

// New builds an aggregator over adapters in fixed priority order.
func New(adapters []provider.Adapter, b *breaker.Breaker, opts Options, logger zerolog.Logger) *Aggregator {
	if len(opts.Symbols) == 0 {
		opts.Symbols = metals.Symbols()
	}
	if opts.MaxChangePercent.IsZero() {
		opts.MaxChangePercent = decimal.NewFromInt(15)
	}

	return &Aggregator{
		adapters: adapters,
		breaker:  b,
		opts:     opts,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// attempt records why one provider failed during a walk.
type attempt struct {
	Provider string
	Reason   string
}

// ExhaustedError is returned when every provider was skipped or failed.
type ExhaustedError struct {
	Attempts []attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Provider + ": " + a.Reason
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

// GetAllQuotes returns one sanitized, validated quote per tracked symbol.
// Providers are tried in priority order; per-symbol fetches against one
// provider run in parallel and the snapshot is all-or-nothing: a partial
// set is rejected so consumers always see a complete board. The first
// provider whose snapshot validates wins outright.
func (a *Aggregator) GetAllQuotes(ctx context.Context) (map[string]provider.Quote, error) {
	var attempts []attempt

	for _, adapter := range a.adapters {
		name := adapter.Name()

		if a.breaker.Open(name) {
			attempts = append(attempts, attempt{Provider: name, Reason: "circuit open"})
			continue
		}

		quotes, err := a.fetchSnapshot(ctx, adapter)
		if err != nil {
			a.breaker.RecordFailure(name, err)
			attempts = append(attempts, attempt{Provider: name, Reason: err.Error()})
			a.logger.Warn().Str("provider", name).Err(err).Msg("provider attempt failed; falling back")
			continue
		}

		for sym, q := range quotes {
			quotes[sym] = a.sanitize(q)
		}

		if err := a.validateSnapshot(name, quotes); err != nil {
			attempts = append(attempts, attempt{Provider: name, Reason: err.Error()})
			a.logger.Warn().Str("provider", name).Err(err).Msg("snapshot failed validation; falling back")
			continue
		}

		a.logger.Debug().Str("provider", name).Int("symbols", len(quotes)).Msg("snapshot served")
		return quotes, nil
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// GetSeries returns the last days+1 points of a symbol's history so the
// consumer can compute one day-over-day delta at the boundary. days is
// clamped to [MinHistoryDays, MaxHistoryDays]; the upstream request carries
// a margin for weekends and holidays.
func (a *Aggregator) GetSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	if _, ok := metals.Lookup(symbol); !ok {
		return nil, &provider.ParseError{Reason: "unknown symbol " + symbol}
	}

	if days < MinHistoryDays {
		days = MinHistoryDays
	}
	if days > MaxHistoryDays {
		days = MaxHistoryDays
	}

	requested := days + days/2 + 5

	var attempts []attempt
	for _, adapter := range a.adapters {
		name := adapter.Name()

		if a.breaker.Open(name) {
			attempts = append(attempts, attempt{Provider: name, Reason: "circuit open"})
			continue
		}

		s, err := adapter.FetchSeries(ctx, symbol, requested)
		if err != nil {
			a.breaker.RecordFailure(name, err)
			attempts = append(attempts, attempt{Provider: name, Reason: err.Error()})
			continue
		}
		if len(s) < 2 {
			attempts = append(attempts, attempt{Provider: name, Reason: "series too short"})
			continue
		}

		return s.TrimLast(days + 1), nil
	}

	return nil, &ExhaustedError{Attempts: attempts}
}

// fetchSnapshot fetches every symbol from one provider in parallel; any
// single failure fails the whole attempt.
func (a *Aggregator) fetchSnapshot(ctx context.Context, adapter provider.Adapter) (map[string]provider.Quote, error) {
	results := make([]provider.Quote, len(a.opts.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range a.opts.Symbols {
		g.Go(func() error {
			q, err := adapter.FetchQuote(gctx, symbol)
			if err != nil {
				return fmt.Errorf("%s: %w", symbol, err)
			}
			results[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	quotes := make(map[string]provider.Quote, len(results))
	for _, q := range results {
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

// sanitize zeroes implausible day-over-day change fields, keeping the price.
// A spurious swing must not falsely trip an alert.
func (a *Aggregator) sanitize(q provider.Quote) provider.Quote {
	if q.ChangePercent.Abs().GreaterThan(a.opts.MaxChangePercent) {
		a.logger.Warn().
			Str("symbol", q.Symbol).
			Str("change_percent", q.ChangePercent.String()).
			Msg("implausible change zeroed")
		q.Change = decimal.Zero
		q.ChangePercent = decimal.Zero
	}
	return q
}

// validateSnapshot checks the merged result: exact symbol coverage and every
// price inside its plausible range.
func (a *Aggregator) validateSnapshot(providerName string, quotes map[string]provider.Quote) error {
	if len(quotes) != len(a.opts.Symbols) {
		return &provider.ValidationError{
			Provider: providerName,
			Reason:   fmt.Sprintf("incomplete snapshot: %d of %d symbols", len(quotes), len(a.opts.Symbols)),
		}
	}

	for _, symbol := range a.opts.Symbols {
		q, ok := quotes[symbol]
		if !ok {
			return &provider.ValidationError{Provider: providerName, Reason: "missing symbol " + symbol}
		}

		r, ok := a.opts.Ranges[symbol]
		if !ok {
			r, ok = metals.DefaultRanges[symbol]
		}
		if ok && !r.Contains(q.Price) {
			return &provider.ValidationError{
				Provider: providerName,
				Reason:   fmt.Sprintf("%s price %s outside plausible range [%s, %s]", symbol, q.Price, r.Min, r.Max),
			}
		}
	}
	return nil
}
