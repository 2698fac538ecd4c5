package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kestrel/internal/storage/models"
	pkgerrors "kestrel/pkg/errors"
)

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Subscription operations ────────────────────────────────────────────────

func (d *DB) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	uris, err := json.Marshal(sub.NodeURIs)
	if err != nil {
		return fmt.Errorf("failed to encode node URIs: %w", err)
	}

	query := `
		INSERT INTO subscriptions (name, url, auto_update, update_interval, last_updated, next_update, node_uris)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		sub.Name, sub.URL, sub.AutoUpdate, sub.UpdateInterval,
		sub.LastUpdated, sub.NextUpdate, string(uris),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	sub.ID, err = result.LastInsertId()
	return err
}

const subscriptionColumns = `id, name, url, auto_update, update_interval, last_updated, next_update, node_uris, created_at, updated_at`

func scanSubscription(row interface{ Scan(...interface{}) error }) (*models.Subscription, error) {
	var sub models.Subscription
	var uris sql.NullString
	err := row.Scan(
		&sub.ID, &sub.Name, &sub.URL, &sub.AutoUpdate, &sub.UpdateInterval,
		&sub.LastUpdated, &sub.NextUpdate, &uris, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if uris.Valid && uris.String != "" {
		if err := json.Unmarshal([]byte(uris.String), &sub.NodeURIs); err != nil {
			return nil, fmt.Errorf("failed to decode node URIs: %w", err)
		}
	}
	return &sub, nil
}

func (d *DB) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrSubscriptionNotFound
	}
	return sub, err
}

func (d *DB) GetSubscriptionByName(ctx context.Context, name string) (*models.Subscription, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE name = ?`, name)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrSubscriptionNotFound
	}
	return sub, err
}

func (d *DB) GetAllSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (d *DB) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	uris, err := json.Marshal(sub.NodeURIs)
	if err != nil {
		return fmt.Errorf("failed to encode node URIs: %w", err)
	}

	query := `
		UPDATE subscriptions
		SET name = ?, url = ?, auto_update = ?, update_interval = ?,
		    last_updated = ?, next_update = ?, node_uris = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := d.db.ExecContext(ctx, query,
		sub.Name, sub.URL, sub.AutoUpdate, sub.UpdateInterval,
		sub.LastUpdated, sub.NextUpdate, string(uris), sub.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pkgerrors.ErrSubscriptionNotFound
	}
	return nil
}

func (d *DB) DeleteSubscription(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pkgerrors.ErrSubscriptionNotFound
	}
	return nil
}

func (d *DB) GetDueSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE auto_update = 1
		  AND (next_update IS NULL OR next_update <= CURRENT_TIMESTAMP)
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ─── Delay history operations ───────────────────────────────────────────────

func (d *DB) RecordDelay(ctx context.Context, rec *models.DelayRecord) error {
	query := `
		INSERT INTO delay_history (node_name, delay_ms, success, tested_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query, rec.NodeName, rec.DelayMS, rec.Success, rec.TestedAt)
	if err != nil {
		return fmt.Errorf("failed to record delay: %w", err)
	}
	rec.ID, err = result.LastInsertId()
	return err
}

func (d *DB) GetLatestDelay(ctx context.Context, nodeName string) (*models.DelayRecord, error) {
	query := `
		SELECT id, node_name, delay_ms, success, tested_at
		FROM delay_history
		WHERE node_name = ?
		ORDER BY tested_at DESC
		LIMIT 1
	`
	var rec models.DelayRecord
	err := d.db.QueryRowContext(ctx, query, nodeName).Scan(
		&rec.ID, &rec.NodeName, &rec.DelayMS, &rec.Success, &rec.TestedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest delay: %w", err)
	}
	return &rec, nil
}

func (d *DB) GetDelayHistory(ctx context.Context, nodeName string, limit int) ([]*models.DelayRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, node_name, delay_ms, success, tested_at
		FROM delay_history
		WHERE node_name = ?
		ORDER BY tested_at DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, nodeName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delay history: %w", err)
	}
	defer rows.Close()

	var recs []*models.DelayRecord
	for rows.Next() {
		var rec models.DelayRecord
		if err := rows.Scan(&rec.ID, &rec.NodeName, &rec.DelayMS, &rec.Success, &rec.TestedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", pkgerrors.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting: %w", err)
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := d.db.ExecContext(ctx, query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}
