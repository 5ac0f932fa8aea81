package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset classes an alert can reference. Only metal alerts are evaluated by
// the worker today; the column keeps the schema open for listed products.
const (
	AssetTypeMetal = "metal"
	AssetTypeETF   = "etf"
)

// AlertRecord represents one row of price_alerts.
//
// LastConditionMet is tri-state: nil means the alert has never been
// evaluated, so the worker primes it on first sight without notifying.
type AlertRecord struct {
	ID               string
	Email            string
	AssetType        string
	AssetSymbol      string
	Direction        string
	TargetPrice      decimal.Decimal
	IsActive         bool
	LastConditionMet *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAlert carries the user-supplied fields of an alert creation request.
type NewAlert struct {
	Email       string
	AssetType   string
	AssetSymbol string
	Direction   string
	TargetPrice decimal.Decimal
}
