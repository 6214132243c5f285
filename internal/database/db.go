package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/protocol"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		slog.Info("running migration", "file", filename)

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	slog.Info("migrations completed", "count", len(sqlFiles))
	return nil
}

// SaveThreshold inserts or updates the setting for one metric
func (db *DB) SaveThreshold(ctx context.Context, metric protocol.Metric, th alerting.Threshold) error {
	query := `
		INSERT INTO alert_thresholds (metric, warning_value, critical_value, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (metric) DO UPDATE
		SET warning_value = EXCLUDED.warning_value,
		    critical_value = EXCLUDED.critical_value,
		    enabled = EXCLUDED.enabled,
		    updated_at = CURRENT_TIMESTAMP
	`
	if _, err := db.ExecContext(ctx, query, string(metric), th.Warning, th.Critical, th.Enabled); err != nil {
		return fmt.Errorf("failed to save threshold %s: %w", metric, err)
	}
	return nil
}

// LoadThresholds returns the persisted settings merged over base. Rows naming
// metrics that are no longer supported are skipped.
func (db *DB) LoadThresholds(ctx context.Context, base alerting.Thresholds) (alerting.Thresholds, error) {
	query := `
		SELECT metric, warning_value, critical_value, enabled, updated_at
		FROM alert_thresholds
		ORDER BY metric
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	out := base.Clone()
	for rows.Next() {
		var r ThresholdRow
		if err := rows.Scan(&r.Metric, &r.WarningValue, &r.CriticalValue, &r.Enabled, &r.UpdatedAt); err != nil {
			return nil, err
		}
		metric, err := protocol.ParseMetric(r.Metric)
		if err != nil {
			slog.Warn("skipping stored threshold", "metric", r.Metric)
			continue
		}
		out[metric] = alerting.Threshold{Warning: r.WarningValue, Critical: r.CriticalValue, Enabled: r.Enabled}
	}

	return out, rows.Err()
}

// InsertAlertLogs writes a batch of alert events in one transaction. Events
// already present (same event id) are ignored, so redelivered messages are harmless.
func (db *DB) InsertAlertLogs(ctx context.Context, logs []*AlertLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts_log (
			event_id, run_id, city, metric, severity, category,
			message, details, value, first_observed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx,
			l.EventID,
			l.RunID,
			l.City,
			l.Metric,
			l.Severity,
			l.Category,
			l.Message,
			l.Details,
			l.Value,
			l.FirstObserved,
			l.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", l.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// InsertAlertEvents stores alert events as history rows
func (db *DB) InsertAlertEvents(ctx context.Context, events []protocol.AlertEvent) error {
	logs := make([]*AlertLog, len(events))
	for i := range events {
		logs[i] = AlertLogFromEvent(&events[i])
	}
	return db.InsertAlertLogs(ctx, logs)
}

// RecentAlertLogs returns the newest history rows for a city, or for every city when city is empty
func (db *DB) RecentAlertLogs(ctx context.Context, city string, limit int) ([]*AlertLog, error) {
	query := `
		SELECT id, event_id, COALESCE(run_id, ''), city, metric, severity, category,
		       message, details, value, first_observed, created_at
		FROM alerts_log
		WHERE ($1 = '' OR city = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, city, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var logs []*AlertLog
	for rows.Next() {
		var l AlertLog
		if err := rows.Scan(
			&l.ID,
			&l.EventID,
			&l.RunID,
			&l.City,
			&l.Metric,
			&l.Severity,
			&l.Category,
			&l.Message,
			&l.Details,
			&l.Value,
			&l.FirstObserved,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
