// Package goldapi adapts the GoldAPI.io per-symbol JSON quote endpoint.
// The source supplies ready-made change fields but no history and, on the
// free tier, no 24h high/low.
package goldapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metalpulse/internal/pricecache"
	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

const name = "goldapi"

// Options parameterise the adapter.
type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Adapter fetches latest quotes from GoldAPI.
type Adapter struct {
	opts    Options
	baseURL string
	client  *http.Client
	cache   *pricecache.Cache[[]byte]
	logger  zerolog.Logger
}

// New constructs the GoldAPI adapter.
func New(opts Options, logger zerolog.Logger) *Adapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.goldapi.io/api"
	}

	return &Adapter{
		opts:    opts,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   pricecache.New[[]byte](opts.CacheTTL),
		logger:  logger.With().Str("component", "goldapi_adapter").Logger(),
	}
}

func (a *Adapter) Name() string { return name }

// flexNumber tolerates both string- and number-typed numerics; GoldAPI has
// shipped both over time. Empty strings and nulls decode to zero; anything
// else that is not a number is a parse error, not a silent zero.
type flexNumber struct {
	value decimal.Decimal
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		f.value = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("malformed numeric value %q", s)
	}
	f.value = d
	return nil
}

type quoteResponse struct {
	Price     flexNumber `json:"price"`
	Ask       flexNumber `json:"ask"`
	Bid       flexNumber `json:"bid"`
	Ch        flexNumber `json:"ch"`
	Chp       flexNumber `json:"chp"`
	Timestamp int64      `json:"timestamp"`
	Error     string     `json:"error"`
}

// FetchQuote returns the latest quote for one symbol.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	payload, err := a.fetchJSON(ctx, symbol)
	if err != nil {
		return provider.Quote{}, err
	}

	var res quoteResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "undecodable body for " + symbol}
	}
	if res.Error != "" {
		return provider.Quote{}, &provider.FetchError{Provider: name, Body: res.Error}
	}

	price := firstPositive(res.Price, res.Ask, res.Bid)
	if price.IsZero() {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "no usable price field for " + symbol}
	}

	change := res.Ch.value
	changePct := res.Chp.value

	effective := ""
	if res.Timestamp > 0 {
		effective = time.Unix(res.Timestamp, 0).UTC().Format("2006-01-02")
	}

	price = price.Round(2)
	return provider.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change.Round(2),
		ChangePercent: changePct.Round(2),
		High:          price,
		Low:           price,
		EffectiveDate: effective,
	}, nil
}

// FetchSeries is unsupported: GoldAPI serves spot quotes only.
func (a *Adapter) FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	return nil, &provider.FetchError{Provider: name, Err: provider.ErrHistoryUnsupported}
}

func (a *Adapter) fetchJSON(ctx context.Context, symbol string) ([]byte, error) {
	cacheKey := "quote:" + symbol
	if cached, ok := a.cache.Get(cacheKey); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/%s/USD", a.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &provider.FetchError{Provider: name, Err: err}
	}
	req.Header.Set("x-access-token", a.opts.APIKey)
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

	a.cache.Put(cacheKey, body)
	return body, nil
}

func firstPositive(nums ...flexNumber) decimal.Decimal {
	for _, n := range nums {
		if n.value.IsPositive() {
			return n.value
		}
	}
	return decimal.Zero
}

var _ provider.Adapter = (*Adapter)(nil)
