// Package metalprice adapts MetalpriceAPI. The free tier exposes batch
// /latest and /yesterday endpoints; a quote's change is computed from the
// two rate maps. Both raw payloads are TTL-cached, so the four per-symbol
// fetches of one snapshot cost at most two upstream calls.
package metalprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metalpulse/internal/metals"
	"metalpulse/internal/pricecache"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

const name = "metalprice"

// Options parameterise the adapter.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Adapter fetches latest quotes from MetalpriceAPI.
type Adapter struct {
	opts    Options
	baseURL string
	client  *http.Client
	cache   *pricecache.Cache[[]byte]
	logger  zerolog.Logger
}

// New constructs the MetalpriceAPI adapter.
func New(opts Options, logger zerolog.Logger) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.metalpriceapi.com/v1"
	}

	return &Adapter{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   pricecache.New[[]byte](opts.CacheTTL),
		logger:  logger.With().Str("component", "metalprice_adapter").Logger(),
	}
}

func (a *Adapter) Name() string { return name }

type ratesResponse struct {
	Success bool                   `json:"success"`
	Rates   map[string]json.Number `json:"rates"`
	Error   *struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// FetchQuote returns the latest quote for one symbol. The USD<SYM> rate is
// USD per ounce directly; change falls back to zero when the yesterday
// endpoint is unavailable (quota), keeping the price usable.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	if _, ok := metals.Lookup(symbol); !ok {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "unknown symbol " + symbol}
	}

	latest, err := a.fetchRates(ctx, "latest")
	if err != nil {
		return provider.Quote{}, err
	}

	price, ok := rateFor(latest, symbol)
	if !ok {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "missing USD" + symbol + " rate"}
	}

	change := decimal.Zero
	changePct := decimal.Zero
	if yesterday, yErr := a.fetchRates(ctx, "yesterday"); yErr == nil {
		if prev, ok := rateFor(yesterday, symbol); ok && prev.IsPositive() {
			change = price.Sub(prev)
			changePct = change.Div(prev).Mul(decimal.NewFromInt(100))
		}
	} else {
		a.logger.Debug().Err(yErr).Msg("yesterday rates unavailable; reporting zero change")
	}

	price = price.Round(2)
	return provider.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change.Round(2),
		ChangePercent: changePct.Round(2),
		High:          price,
		Low:           price,
		EffectiveDate: time.Now().UTC().Format("2006-01-02"),
	}, nil
}

// FetchSeries is unsupported on the free tier.
func (a *Adapter) FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	return nil, &provider.FetchError{Provider: name, Err: provider.ErrHistoryUnsupported}
}

func (a *Adapter) fetchRates(ctx context.Context, endpoint string) (map[string]json.Number, error) {
	if cached, ok := a.cache.Get(endpoint); ok {
		return decodeRates(cached)
	}

	currencies := strings.Join(metals.Symbols(), ",")
	u := fmt.Sprintf("%s/%s?api_key=%s&base=USD&currencies=%s",
		a.baseURL, endpoint, url.QueryEscape(a.opts.APIKey), url.QueryEscape(currencies))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &provider.FetchError{Provider: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.FetchError{Provider: name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.FetchError{Provider: name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.FetchError{Provider: name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	rates, err := decodeRates(body)
	if err != nil {
		return nil, err
	}

	a.cache.Put(endpoint, body)
	return rates, nil
}

func decodeRates(body []byte) (map[string]json.Number, error) {
	var res ratesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &provider.ParseError{Provider: name, Reason: "undecodable body"}
	}
	if !res.Success {
		info := "api returned success=false"
		if res.Error != nil && res.Error.Info != "" {
			info = res.Error.Info
		}
		return nil, &provider.FetchError{Provider: name, Body: info}
	}
	if len(res.Rates) == 0 {
		return nil, &provider.ParseError{Provider: name, Reason: "missing rates"}
	}
	return res.Rates, nil
}

// rateFor prefers the USD<SYM> (USD per ounce) key and falls back to
// inverting <SYM> (ounces per USD), the two shapes the API has served.
func rateFor(rates map[string]json.Number, symbol string) (decimal.Decimal, bool) {
	if n, ok := rates["USD"+symbol]; ok {
		if d, err := decimal.NewFromString(n.String()); err == nil && d.IsPositive() {
			return d, true
		}
	}
	if n, ok := rates[symbol]; ok {
		if d, err := decimal.NewFromString(n.String()); err == nil && d.IsPositive() {
			return decimal.NewFromInt(1).DivRound(d, 8), true
		}
	}
	return decimal.Decimal{}, false
}

var _ provider.Adapter = (*Adapter)(nil)
