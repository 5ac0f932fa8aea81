package metalprice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"metalpulse/internal/provider"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second, CacheTTL: time.Minute}, zerolog.Nop())
}

func TestFetchQuoteComputesChangeFromYesterday(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/latest":
			_, _ = w.Write([]byte(`{"success":true,"rates":{"USDXAU":2934.50,"USDXAG":32.85}}`))
		case r.URL.Path == "/yesterday":
			_, _ = w.Write([]byte(`{"success":true,"rates":{"USDXAU":2916.20,"USDXAG":33.27}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	quote, err := a.FetchQuote(context.Background(), "XAU")
	require.NoError(t, err)

	require.True(t, quote.Price.Equal(decimal.NewFromFloat(2934.50)))
	require.True(t, quote.Change.Equal(decimal.NewFromFloat(18.30)))
	require.True(t, quote.ChangePercent.Equal(decimal.NewFromFloat(0.63)))
}

func TestFetchQuoteZeroChangeWhenYesterdayFails(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/yesterday" {
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":104,"info":"monthly usage limit reached"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"rates":{"USDXAU":2934.50}}`))
	})

	quote, err := a.FetchQuote(context.Background(), "XAU")
	require.NoError(t, err)
	require.True(t, quote.Change.IsZero())
	require.True(t, quote.ChangePercent.IsZero())
}

func TestFetchQuoteBatchPayloadCached(t *testing.T) {
	var latestCalls atomic.Int32
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/latest" {
			latestCalls.Add(1)
		}
		_, _ = w.Write([]byte(`{"success":true,"rates":{"USDXAU":2934.50,"USDXAG":32.85}}`))
	})

	_, err := a.FetchQuote(context.Background(), "XAU")
	require.NoError(t, err)
	_, err = a.FetchQuote(context.Background(), "XAG")
	require.NoError(t, err)

	require.Equal(t, int32(1), latestCalls.Load(), "second symbol must reuse the cached batch payload")
}

func TestFetchQuoteInvertedRateShape(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"rates":{"XAU":0.00034078}}`))
	})

	quote, err := a.FetchQuote(context.Background(), "XAU")
	require.NoError(t, err)
	require.True(t, quote.Price.GreaterThan(decimal.NewFromInt(2900)), "price %s", quote.Price)
	require.True(t, quote.Price.LessThan(decimal.NewFromInt(2950)))
}

func TestFetchQuoteSuccessFalse(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":104,"info":"your plan does not allow this endpoint"}}`))
	})

	_, err := a.FetchQuote(context.Background(), "XAU")
	require.Error(t, err)
	require.True(t, provider.IsRateLimited(err), "plan wording must classify as rate-limited")
}

func TestFetchSeriesUnsupported(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := a.FetchSeries(context.Background(), "XAU", 30)
	require.ErrorIs(t, err, provider.ErrHistoryUnsupported)
}
