package aggregator

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"metalpulse/internal/breaker"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

// fakeAdapter serves canned quotes/series and counts calls.
type fakeAdapter struct {
	name      string
	quotes    map[string]provider.Quote
	quoteErr  error
	failSyms  map[string]error
	series    series.Series
	seriesErr error

	quoteCalls  atomic.Int32
	seriesCalls atomic.Int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	f.quoteCalls.Add(1)
	if f.quoteErr != nil {
		return provider.Quote{}, f.quoteErr
	}
	if err, ok := f.failSyms[symbol]; ok {
		return provider.Quote{}, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return provider.Quote{}, &provider.ParseError{Provider: f.name, Reason: "no quote for " + symbol}
	}
	return q, nil
}

func (f *fakeAdapter) FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	f.seriesCalls.Add(1)
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return f.series, nil
}

func quoteFor(symbol string, price float64) provider.Quote {
	p := decimal.NewFromFloat(price)
	return provider.Quote{Symbol: symbol, Price: p, High: p, Low: p, EffectiveDate: "2025-02-20"}
}

func fullBoard(xau, xag, xpt, xpd float64) map[string]provider.Quote {
	return map[string]provider.Quote{
		"XAU": quoteFor("XAU", xau),
		"XAG": quoteFor("XAG", xag),
		"XPT": quoteFor("XPT", xpt),
		"XPD": quoteFor("XPD", xpd),
	}
}

func newAggregator(t *testing.T, adapters []provider.Adapter, opts Options) (*Aggregator, *breaker.Breaker) {
	t.Helper()
	b := breaker.New(30*time.Minute, nil, zerolog.Nop())
	return New(adapters, b, opts, zerolog.Nop()), b
}

func TestGetAllQuotesFirstProviderWins(t *testing.T) {
	first := &fakeAdapter{name: "stooq", quotes: fullBoard(2934.50, 32.85, 1012.40, 978.20)}
	second := &fakeAdapter{name: "goldapi", quotes: fullBoard(2900, 32, 1000, 970)}

	agg, _ := newAggregator(t, []provider.Adapter{first, second}, Options{})

	quotes, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 4)
	require.True(t, quotes["XAU"].Price.Equal(decimal.NewFromFloat(2934.50)))
	require.Equal(t, int32(0), second.quoteCalls.Load(), "lower priority provider must not be called")
}

func TestGetAllQuotesSkipsOpenCircuit(t *testing.T) {
	first := &fakeAdapter{name: "goldapi", quotes: fullBoard(2900, 32, 1000, 970)}
	second := &fakeAdapter{name: "stooq", quotes: fullBoard(2934.50, 32.85, 1012.40, 978.20)}

	agg, b := newAggregator(t, []provider.Adapter{first, second}, Options{})
	b.RecordFailure("goldapi", &provider.FetchError{Provider: "goldapi", StatusCode: http.StatusTooManyRequests})

	quotes, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	require.True(t, quotes["XAU"].Price.Equal(decimal.NewFromFloat(2934.50)), "must come from healthy provider")
	require.Equal(t, int32(0), first.quoteCalls.Load(), "circuit-open provider must never be called")
}

func TestGetAllQuotesPartialSnapshotRejected(t *testing.T) {
	flaky := &fakeAdapter{
		name:     "goldapi",
		quotes:   fullBoard(2934.50, 32.85, 1012.40, 978.20),
		failSyms: map[string]error{"XPD": &provider.FetchError{Provider: "goldapi", StatusCode: http.StatusBadGateway}},
	}
	healthy := &fakeAdapter{name: "stooq", quotes: fullBoard(2930, 32.5, 1010, 975)}

	agg, _ := newAggregator(t, []provider.Adapter{flaky, healthy}, Options{})

	quotes, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	require.True(t, quotes["XAU"].Price.Equal(decimal.NewFromFloat(2930)))
}

func TestGetAllQuotesImplausiblePriceRejected(t *testing.T) {
	bogus := &fakeAdapter{name: "metalprice", quotes: fullBoard(12.34, 32.85, 1012.40, 978.20)}
	healthy := &fakeAdapter{name: "stooq", quotes: fullBoard(2934.50, 32.85, 1012.40, 978.20)}

	agg, _ := newAggregator(t, []provider.Adapter{bogus, healthy}, Options{})

	quotes, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	require.True(t, quotes["XAU"].Price.Equal(decimal.NewFromFloat(2934.50)))
}

func TestGetAllQuotesSanitizerClamp(t *testing.T) {
	board := fullBoard(2934.50, 32.85, 1012.40, 978.20)
	q := board["XAU"]
	q.Change = decimal.NewFromFloat(1200)
	q.ChangePercent = decimal.NewFromInt(42)
	board["XAU"] = q

	agg, _ := newAggregator(t, []provider.Adapter{&fakeAdapter{name: "stooq", quotes: board}}, Options{})

	quotes, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)

	got := quotes["XAU"]
	require.True(t, got.Price.Equal(decimal.NewFromFloat(2934.50)), "price must be kept")
	require.True(t, got.Change.IsZero())
	require.True(t, got.ChangePercent.IsZero())
}

func TestGetAllQuotesExhaustionNamesProviders(t *testing.T) {
	down := &fakeAdapter{name: "stooq", quoteErr: &provider.FetchError{Provider: "stooq", StatusCode: http.StatusServiceUnavailable}}
	limited := &fakeAdapter{name: "goldapi", quoteErr: &provider.FetchError{Provider: "goldapi", StatusCode: http.StatusTooManyRequests}}

	agg, b := newAggregator(t, []provider.Adapter{down, limited}, Options{})

	_, err := agg.GetAllQuotes(context.Background())

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	require.Len(t, ex.Attempts, 2)
	require.Contains(t, err.Error(), "stooq")
	require.Contains(t, err.Error(), "goldapi")

	require.True(t, b.Open("goldapi"), "rate-limited provider must open its breaker")
	require.False(t, b.Open("stooq"), "transient failure must not open the breaker")
}

func TestGetAllQuotesRateLimitOpensBreakerForNextCall(t *testing.T) {
	limited := &fakeAdapter{name: "goldapi", quoteErr: &provider.FetchError{Provider: "goldapi", StatusCode: http.StatusTooManyRequests}}
	healthy := &fakeAdapter{name: "stooq", quotes: fullBoard(2934.50, 32.85, 1012.40, 978.20)}

	agg, _ := newAggregator(t, []provider.Adapter{limited, healthy}, Options{})

	_, err := agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	firstCalls := limited.quoteCalls.Load()
	require.Positive(t, firstCalls)

	_, err = agg.GetAllQuotes(context.Background())
	require.NoError(t, err)
	require.Equal(t, firstCalls, limited.quoteCalls.Load(), "second walk must skip the rate-limited provider")
}

func TestGetSeriesTrimsToDaysPlusOne(t *testing.T) {
	var s series.Series
	for i := 1; i <= 40; i++ {
		s = append(s, series.Point{Date: time.Date(2025, 1, i%28+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), Close: decimal.NewFromInt(int64(2000 + i))})
	}
	adapter := &fakeAdapter{name: "stooq", series: s}

	agg, _ := newAggregator(t, []provider.Adapter{adapter}, Options{})

	got, err := agg.GetSeries(context.Background(), "XAU", 30)
	require.NoError(t, err)
	require.Len(t, got, 31)
}

func TestGetSeriesFallsPastHistoryUnsupported(t *testing.T) {
	latestOnly := &fakeAdapter{name: "goldapi", seriesErr: &provider.FetchError{Provider: "goldapi", Err: provider.ErrHistoryUnsupported}}
	historical := &fakeAdapter{
		name: "stooq",
		series: series.Series{
			{Date: "2025-02-19", Close: decimal.NewFromFloat(2916.20)},
			{Date: "2025-02-20", Close: decimal.NewFromFloat(2934.50)},
		},
	}

	agg, b := newAggregator(t, []provider.Adapter{latestOnly, historical}, Options{})

	got, err := agg.GetSeries(context.Background(), "XAU", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.False(t, b.Open("goldapi"), "unsupported history must not open the breaker")
}

func TestGetSeriesUnknownSymbol(t *testing.T) {
	agg, _ := newAggregator(t, []provider.Adapter{&fakeAdapter{name: "stooq"}}, Options{})

	_, err := agg.GetSeries(context.Background(), "BTC", 30)
	var pe *provider.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestGetSeriesClampsDays(t *testing.T) {
	var s series.Series
	for i := 0; i < 400; i++ {
		s = append(s, series.Point{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02"), Close: decimal.NewFromInt(2000)})
	}
	adapter := &fakeAdapter{name: "stooq", series: s}

	agg, _ := newAggregator(t, []provider.Adapter{adapter}, Options{})

	got, err := agg.GetSeries(context.Background(), "XAU", 10000)
	require.NoError(t, err)
	require.Len(t, got, MaxHistoryDays+1)

	got, err = agg.GetSeries(context.Background(), "XAU", -3)
	require.NoError(t, err)
	require.Len(t, got, MinHistoryDays+1)
}
