// Package stooq adapts the Stooq daily-close CSV endpoint. It is the only
// source that serves full historical series, so it sits first in the
// provider order.
package stooq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metalpulse/internal/metals"
	"metalpulse/internal/pricecache"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

const name = "stooq"

// quoteWindowDays is the series length backing a latest quote: price and
// change come from the last two rows, high/low from the whole window.
const quoteWindowDays = 30

// Stooq caps the row count of its CSV download endpoint.
const maxRows = 400

// Options parameterise the adapter.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	CacheTTL  time.Duration
}

// Adapter fetches and parses Stooq CSV payloads, caching the raw text.
type Adapter struct {
	opts    Options
	baseURL string
	client  *http.Client
	cache   *pricecache.Cache[string]
	logger  zerolog.Logger
}

// New constructs the Stooq adapter.
func New(opts Options, logger zerolog.Logger) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}

	return &Adapter{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   pricecache.New[string](opts.CacheTTL),
		logger:  logger.With().Str("component", "stooq_adapter").Logger(),
	}
}

func (a *Adapter) Name() string { return name }

// FetchQuote derives the latest quote from the tail of a short series.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	s, err := a.fetchSeries(ctx, symbol, quoteWindowDays)
	if err != nil {
		return provider.Quote{}, err
	}

	quote, err := provider.DeriveQuote(symbol, s)
	if err != nil {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: fmt.Sprintf("not enough rows for %s", symbol)}
	}
	return quote, nil
}

// FetchSeries returns at least the last `days` daily closes for symbol.
func (a *Adapter) FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	return a.fetchSeries(ctx, symbol, days)
}

func (a *Adapter) fetchSeries(ctx context.Context, symbol string, rows int) (series.Series, error) {
	metal, ok := metals.Lookup(symbol)
	if !ok {
		return nil, &provider.ParseError{Provider: name, Reason: "unknown symbol " + symbol}
	}

	if rows < 2 {
		rows = 2
	}
	if rows > maxRows {
		rows = maxRows
	}

	text, err := a.fetchCSV(ctx, metal.StooqSymbol, rows)
	if err != nil {
		return nil, err
	}

	parsed := series.ParseDelimited(text)
	if len(parsed) == 0 {
		return nil, &provider.ParseError{Provider: name, Reason: "no usable rows for " + symbol}
	}
	return parsed, nil
}

func (a *Adapter) fetchCSV(ctx context.Context, stooqSymbol string, rows int) (string, error) {
	cacheKey := fmt.Sprintf("series:%s:%d", stooqSymbol, rows)
	if cached, ok := a.cache.Get(cacheKey); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/q/d/l/?s=%s&i=d&l=%d", a.baseURL, url.QueryEscape(stooqSymbol), rows)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &provider.FetchError{Provider: name, Err: err}
	}
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "metalpulse/1.0")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &provider.FetchError{Provider: name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.FetchError{Provider: name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &provider.FetchError{Provider: name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	text := string(body)
	a.cache.Put(cacheKey, text)

	a.logger.Debug().Str("symbol", stooqSymbol).Int("rows", rows).Msg("fetched csv payload")
	return text, nil
}

var _ provider.Adapter = (*Adapter)(nil)
