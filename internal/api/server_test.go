package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"metalpulse/internal/provider"
	"metalpulse/internal/series"
	"metalpulse/internal/storage"
)

type fakeQuotes struct {
	quotes    map[string]provider.Quote
	quotesErr error
	series    series.Series
	seriesErr error

	gotSymbol string
	gotDays   int
}

func (f *fakeQuotes) GetAllQuotes(ctx context.Context) (map[string]provider.Quote, error) {
	return f.quotes, f.quotesErr
}

func (f *fakeQuotes) GetSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	f.gotSymbol = symbol
	f.gotDays = days
	return f.series, f.seriesErr
}

type fakeStore struct {
	created   []storage.NewAlert
	createErr error
	byEmail   []storage.AlertRecord
	deactErr  error
}

func (f *fakeStore) CreateAlert(ctx context.Context, alert storage.NewAlert) (storage.AlertRecord, error) {
	if f.createErr != nil {
		return storage.AlertRecord{}, f.createErr
	}
	f.created = append(f.created, alert)
	return storage.AlertRecord{
		ID:          "alrt_1",
		Email:       alert.Email,
		AssetType:   alert.AssetType,
		AssetSymbol: alert.AssetSymbol,
		Direction:   alert.Direction,
		TargetPrice: alert.TargetPrice,
		IsActive:    true,
	}, nil
}

func (f *fakeStore) ListActiveAlerts(ctx context.Context, assetType string) ([]storage.AlertRecord, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) ListAlertsByEmail(ctx context.Context, email string) ([]storage.AlertRecord, error) {
	return f.byEmail, nil
}

func (f *fakeStore) UpdateConditionState(ctx context.Context, id string, met bool) error {
	return errors.New("not implemented")
}

func (f *fakeStore) DeactivateAlert(ctx context.Context, id string) error {
	return f.deactErr
}

func fullQuotes() map[string]provider.Quote {
	mk := func(sym string, price float64) provider.Quote {
		p := decimal.NewFromFloat(price)
		return provider.Quote{Symbol: sym, Price: p, High: p, Low: p, EffectiveDate: "2025-02-20"}
	}
	return map[string]provider.Quote{
		"XAU": mk("XAU", 2934.50),
		"XAG": mk("XAG", 32.85),
		"XPT": mk("XPT", 1012.40),
		"XPD": mk("XPD", 978.20),
	}
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := New(&fakeQuotes{quotes: fullQuotes()}, nil, zerolog.Nop())
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListMetals(t *testing.T) {
	s := New(&fakeQuotes{quotes: fullQuotes()}, nil, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/api/metals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 4)
	require.Equal(t, "gold", got[0]["id"])
	require.Equal(t, "XAU", got[0]["symbol"])
	require.InDelta(t, 2934.50, got[0]["price"], 1e-9)
}

func TestListMetalsUpstreamFailure(t *testing.T) {
	s := New(&fakeQuotes{quotesErr: errors.New("all providers exhausted")}, nil, zerolog.Nop())
	rec := doRequest(t, s, http.MethodGet, "/api/metals", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHistory(t *testing.T) {
	fq := &fakeQuotes{series: series.Series{
		{Date: "2025-02-19", Close: decimal.NewFromFloat(2916.20)},
		{Date: "2025-02-20", Close: decimal.NewFromFloat(2934.50)},
	}}
	s := New(fq, nil, zerolog.Nop())

	rec := doRequest(t, s, http.MethodGet, "/api/metals/xau/history?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "XAU", fq.gotSymbol, "symbol must be upper-cased")
	require.Equal(t, 7, fq.gotDays)

	var got []historyPointDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), "history must be a bare array of points")
	require.Len(t, got, 2)
	require.Equal(t, "2025-02-20", got[1].Date)
	require.InDelta(t, 2934.50, got[1].Price, 1e-9)
}

func TestHistoryUnknownSymbol(t *testing.T) {
	s := New(&fakeQuotes{}, nil, zerolog.Nop())
	rec := doRequest(t, s, http.MethodGet, "/api/metals/BTC/history", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryBadDays(t *testing.T) {
	s := New(&fakeQuotes{}, nil, zerolog.Nop())
	rec := doRequest(t, s, http.MethodGet, "/api/metals/XAU/history?days=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAlert(t *testing.T) {
	store := &fakeStore{}
	s := New(&fakeQuotes{}, store, zerolog.Nop())

	body := `{"email":"user@example.com","assetSymbol":"xau","direction":"above","targetPrice":2000}`
	rec := doRequest(t, s, http.MethodPost, "/api/alerts", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, store.created, 1)
	require.Equal(t, "XAU", store.created[0].AssetSymbol)
	require.Equal(t, storage.AssetTypeMetal, store.created[0].AssetType)
	require.True(t, store.created[0].TargetPrice.Equal(decimal.NewFromInt(2000)))
}

func TestCreateAlertValidation(t *testing.T) {
	s := New(&fakeQuotes{}, &fakeStore{}, zerolog.Nop())

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"assetSymbol":"XAU","direction":"above","targetPrice":2000}`},
		{"bad email", `{"email":"nope","assetSymbol":"XAU","direction":"above","targetPrice":2000}`},
		{"unknown symbol", `{"email":"a@b.com","assetSymbol":"BTC","direction":"above","targetPrice":2000}`},
		{"bad direction", `{"email":"a@b.com","assetSymbol":"XAU","direction":"sideways","targetPrice":2000}`},
		{"zero target", `{"email":"a@b.com","assetSymbol":"XAU","direction":"above","targetPrice":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/alerts", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAlertsWithoutDatabase(t *testing.T) {
	s := New(&fakeQuotes{}, nil, zerolog.Nop())

	rec := doRequest(t, s, http.MethodPost, "/api/alerts", `{"email":"a@b.com","assetSymbol":"XAU","direction":"above","targetPrice":2000}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/alerts?email=a@b.com", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteAlert(t *testing.T) {
	store := &fakeStore{}
	s := New(&fakeQuotes{}, store, zerolog.Nop())

	rec := doRequest(t, s, http.MethodDelete, "/api/alerts/alrt_1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	store.deactErr = storage.ErrAlertNotFound
	rec = doRequest(t, s, http.MethodDelete, "/api/alerts/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
