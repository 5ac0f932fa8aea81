// Package worker runs the periodic alert evaluation loop: one quote
// snapshot per tick, every active alert checked against it, and an email
// only on the edge where a condition flips from unmet to met.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"metalpulse/internal/alerting"
	"metalpulse/internal/provider"
	"metalpulse/internal/storage"
)

// QuoteSource supplies one complete quote snapshot. Satisfied by the
// aggregator in production and by static sources in the simulator.
type QuoteSource interface {
	GetAllQuotes(ctx context.Context) (map[string]provider.Quote, error)
}

// AlertWorker evaluates stored alerts against live quotes.
type AlertWorker struct {
	source   QuoteSource
	store    storage.AlertStore
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// New wires an AlertWorker.
func New(source QuoteSource, store storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *AlertWorker {
	return &AlertWorker{
		source:   source,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "alert_worker").Logger(),
	}
}

// Tick runs one evaluation pass. Per-alert problems are logged and skipped
// so one bad row never starves the rest; only a failure to obtain quotes or
// list alerts aborts the pass.
func (w *AlertWorker) Tick(ctx context.Context, tickAt time.Time) error {
	start := time.Now()

	quotes, err := w.source.GetAllQuotes(ctx)
	if err != nil {
		w.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("quote snapshot unavailable; skipping pass")
		return err
	}

	alerts, err := w.store.ListActiveAlerts(ctx, storage.AssetTypeMetal)
	if err != nil {
		w.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("list active alerts failed")
		return err
	}

	notified := 0
	for _, alert := range alerts {
		if w.evaluate(ctx, alert, quotes) {
			notified++
		}
	}

	w.logger.Info().
		Int("alerts", len(alerts)).
		Int("notified", notified).
		Dur("elapsed", time.Since(start)).
		Msg("alert pass complete")
	return nil
}

// evaluate processes a single alert and reports whether it notified.
func (w *AlertWorker) evaluate(ctx context.Context, alert storage.AlertRecord, quotes map[string]provider.Quote) bool {
	quote, ok := quotes[alert.AssetSymbol]
	if !ok || !quote.Price.IsPositive() {
		w.logger.Debug().
			Str("alert_id", alert.ID).
			Str("symbol", alert.AssetSymbol).
			Msg("no usable quote for alert; skipping")
		return false
	}

	isMet := alerting.ConditionMet(alert.Direction, alert.TargetPrice, quote.Price)
	prev := alert.LastConditionMet

	// Notify only on the false-to-true edge. A nil previous state primes
	// the alert silently, so restarts never replay an already-met alert.
	crossed := prev != nil && !*prev && isMet

	notifiedOK := false
	if crossed {
		note := alerting.Notification{
			To:           alert.Email,
			AssetSymbol:  alert.AssetSymbol,
			Direction:    alert.Direction,
			TargetPrice:  alert.TargetPrice,
			CurrentPrice: quote.Price,
		}
		if err := w.notifier.Notify(ctx, note); err != nil {
			// State still advances below: a failed email is not retried,
			// otherwise a broken mail provider would spam on recovery.
			w.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("alert notification failed")
		} else {
			notifiedOK = true
			w.logger.Info().
				Str("alert_id", alert.ID).
				Str("symbol", alert.AssetSymbol).
				Str("direction", alert.Direction).
				Str("target", alert.TargetPrice.StringFixed(2)).
				Str("price", quote.Price.StringFixed(2)).
				Msg("alert triggered")
		}
	}

	if prev == nil || *prev != isMet {
		if err := w.store.UpdateConditionState(ctx, alert.ID, isMet); err != nil {
			w.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("persist condition state failed")
		}
	}

	return notifiedOK
}
