package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"metalpulse/internal/provider"
	"metalpulse/internal/storage"
	"metalpulse/internal/worker"
)

// SimulateAlert 通过给定的目标价/当前价模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, email, symbol, direction string, target, current decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置告警通道")
	}

	source := &staticQuoteSource{symbol: symbol, price: current}
	store := newSimulatedAlertStore(storage.AlertRecord{
		ID:          "simulated",
		Email:       email,
		AssetType:   storage.AssetTypeMetal,
		AssetSymbol: symbol,
		Direction:   direction,
		TargetPrice: target,
		IsActive:    true,
	})

	w := worker.New(source, store, notifier, a.Logger)
	return w.Tick(ctx, time.Now().UTC())
}

type staticQuoteSource struct {
	symbol string
	price  decimal.Decimal
}

func (s *staticQuoteSource) GetAllQuotes(ctx context.Context) (map[string]provider.Quote, error) {
	return map[string]provider.Quote{
		s.symbol: {Symbol: s.symbol, Price: s.price},
	}, nil
}

// simulatedAlertStore serves one pre-armed alert; the worker sees a previous
// state of false, so a met condition always counts as a fresh crossing.
type simulatedAlertStore struct {
	record storage.AlertRecord
}

func newSimulatedAlertStore(record storage.AlertRecord) *simulatedAlertStore {
	primed := false
	record.LastConditionMet = &primed
	return &simulatedAlertStore{record: record}
}

func (s *simulatedAlertStore) CreateAlert(ctx context.Context, alert storage.NewAlert) (storage.AlertRecord, error) {
	return storage.AlertRecord{}, errors.New("not supported in simulation")
}

func (s *simulatedAlertStore) ListActiveAlerts(ctx context.Context, assetType string) ([]storage.AlertRecord, error) {
	return []storage.AlertRecord{s.record}, nil
}

func (s *simulatedAlertStore) ListAlertsByEmail(ctx context.Context, email string) ([]storage.AlertRecord, error) {
	return nil, errors.New("not supported in simulation")
}

func (s *simulatedAlertStore) UpdateConditionState(ctx context.Context, id string, met bool) error {
	s.record.LastConditionMet = &met
	return nil
}

func (s *simulatedAlertStore) DeactivateAlert(ctx context.Context, id string) error {
	return errors.New("not supported in simulation")
}

var _ worker.QuoteSource = (*staticQuoteSource)(nil)
var _ storage.AlertStore = (*simulatedAlertStore)(nil)
