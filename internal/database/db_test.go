package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/protocol"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{sqlDB}, mock
}

func TestSaveThreshold(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO alert_thresholds").
		WithArgs("aqi", 80.0, 150.0, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.SaveThreshold(context.Background(), protocol.MetricAQI, alerting.Threshold{Warning: 80, Critical: 150, Enabled: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveThreshold_Error(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO alert_thresholds").WillReturnError(errors.New("connection reset"))

	err := db.SaveThreshold(context.Background(), protocol.MetricAQI, alerting.Threshold{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestLoadThresholds_MergesOverBase(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"metric", "warning_value", "critical_value", "enabled", "updated_at"}).
		AddRow("humidity", 60.0, 90.0, false, now).
		AddRow("pollen", 1.0, 2.0, true, now)
	mock.ExpectQuery("SELECT metric, warning_value").WillReturnRows(rows)

	th, err := db.LoadThresholds(context.Background(), alerting.DefaultThresholds())
	require.NoError(t, err)

	assert.Equal(t, alerting.Threshold{Warning: 60, Critical: 90, Enabled: false}, th[protocol.MetricHumidity])
	assert.Equal(t, alerting.DefaultThresholds()[protocol.MetricAQI], th[protocol.MetricAQI])
	assert.Len(t, th, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertEvents(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2025, 11, 2, 14, 5, 9, 0, time.UTC)
	events := []protocol.AlertEvent{
		{ID: "Delhi-aqi-critical-1", RunID: "r1", Location: "Delhi", Metric: protocol.MetricAQI, Severity: protocol.SeverityCritical, Category: "Air Quality", Value: 220, CreatedAt: created},
		{ID: "Pune-temperature-warning-1", RunID: "r1", Location: "Pune", Metric: protocol.MetricTemperature, Severity: protocol.SeverityWarning, Category: "Temperature", Value: 37, CreatedAt: created},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO alerts_log")
	prep.ExpectExec().
		WithArgs("Delhi-aqi-critical-1", "r1", "Delhi", "aqi", "critical", "Air Quality", "", "", 220.0, sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("Pune-temperature-warning-1", "r1", "Pune", "temperature", "warning", "Temperature", "", "", 37.0, sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, db.InsertAlertEvents(context.Background(), events))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertLogs_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO alerts_log").
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.InsertAlertLogs(context.Background(), []*AlertLog{{EventID: "x"}})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertLogs_EmptyIsNoop(t *testing.T) {
	db, mock := newMockDB(t)

	require.NoError(t, db.InsertAlertLogs(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAlertLogs(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2025, 11, 2, 14, 5, 9, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "event_id", "run_id", "city", "metric", "severity", "category", "message", "details", "value", "first_observed", "created_at"}).
		AddRow(7, "Delhi-aqi-critical-1", "r1", "Delhi", "aqi", "critical", "Air Quality", "m", "d", 220.0, nil, created)
	mock.ExpectQuery("FROM alerts_log").WithArgs("Delhi", 10).WillReturnRows(rows)

	logs, err := db.RecentAlertLogs(context.Background(), "Delhi", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(7), logs[0].ID)
	assert.Nil(t, logs[0].FirstObserved)
	assert.Equal(t, created, logs[0].CreatedAt)
}

func TestRunMigrations(t *testing.T) {
	db, mock := newMockDB(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_b.sql"), []byte("CREATE TABLE b (id INT);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_a.sql"), []byte("CREATE TABLE a (id INT);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.RunMigrations(dir))
	assert.NoError(t, mock.ExpectationsWereMet())
}
