package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")

	// ErrAlertNotFound indicates the referenced alert does not exist.
	ErrAlertNotFound = errors.New("storage: alert not found")
)

const (
	insertAlertSQL = `INSERT INTO price_alerts (
        email,
        asset_type,
        asset_symbol,
        direction,
        target_price
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, email, asset_type, asset_symbol, direction, target_price,
              is_active, last_is_condition_met, created_at, updated_at;`

	listActiveAlertsSQL = `SELECT
        id,
        email,
        asset_type,
        asset_symbol,
        direction,
        target_price,
        is_active,
        last_is_condition_met,
        created_at,
        updated_at
    FROM price_alerts
    WHERE is_active = TRUE
      AND asset_type = $1
    ORDER BY created_at;`

	listAlertsByEmailSQL = `SELECT
        id,
        email,
        asset_type,
        asset_symbol,
        direction,
        target_price,
        is_active,
        last_is_condition_met,
        created_at,
        updated_at
    FROM price_alerts
    WHERE email = $1
      AND is_active = TRUE
    ORDER BY created_at DESC;`

	updateConditionStateSQL = `UPDATE price_alerts
    SET last_is_condition_met = $2,
        updated_at = NOW()
    WHERE id = $1;`

	deactivateAlertSQL = `UPDATE price_alerts
    SET is_active = FALSE,
        updated_at = NOW()
    WHERE id = $1
      AND is_active = TRUE;`
)

// AlertStore defines persistence operations for price alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert NewAlert) (AlertRecord, error)
	ListActiveAlerts(ctx context.Context, assetType string) ([]AlertRecord, error)
	ListAlertsByEmail(ctx context.Context, email string) ([]AlertRecord, error)
	UpdateConditionState(ctx context.Context, id string, met bool) error
	DeactivateAlert(ctx context.Context, id string) error
}

// Store provides pgx-backed alert persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// CreateAlert persists a new active alert and returns the stored row.
func (s *Store) CreateAlert(ctx context.Context, alert NewAlert) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Email,
		alert.AssetType,
		alert.AssetSymbol,
		alert.Direction,
		alert.TargetPrice.String(),
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListActiveAlerts lists active alerts of one asset type in creation order.
func (s *Store) ListActiveAlerts(ctx context.Context, assetType string) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveAlertsSQL, assetType)
	if queryErr != nil {
		return nil, fmt.Errorf("list active alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListAlertsByEmail lists a user's active alerts, newest first.
func (s *Store) ListAlertsByEmail(ctx context.Context, email string) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsByEmailSQL, email)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts by email: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// UpdateConditionState records the latest evaluation outcome for an alert.
func (s *Store) UpdateConditionState(ctx context.Context, id string, met bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateConditionStateSQL, id, met)
	if execErr != nil {
		return fmt.Errorf("update condition state: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DeactivateAlert soft-deletes an alert; deactivating twice is not an error
// for the caller to distinguish, so a missing row maps to ErrAlertNotFound.
func (s *Store) DeactivateAlert(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, deactivateAlertSQL, id)
	if execErr != nil {
		return fmt.Errorf("deactivate alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func collectAlerts(rows pgx.Rows) ([]AlertRecord, error) {
	alerts := make([]AlertRecord, 0)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec      AlertRecord
		priceStr string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.Email,
		&rec.AssetType,
		&rec.AssetSymbol,
		&rec.Direction,
		&priceStr,
		&rec.IsActive,
		&rec.LastConditionMet,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse target price: %w", err)
	}
	rec.TargetPrice = price

	return rec, nil
}

var _ AlertStore = (*Store)(nil)
