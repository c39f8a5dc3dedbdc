// Package storage persists user settings, weekly snapshots, and run logs
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetdigest/internal/core"

	_ "modernc.org/sqlite"
)

// ProviderAuth holds the OAuth credentials for the budget provider.
type ProviderAuth struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	BudgetID     string    `json:"budgetId,omitempty"`
}

// UserSettings is everything the service keeps per user, stored as one
// JSON document so new fields never need a migration.
type UserSettings struct {
	CSP        core.CSPSettings        `json:"csp"`
	Newsletter core.NewsletterSettings `json:"newsletter"`
	Provider   ProviderAuth            `json:"provider"`
}

// DefaultUserSettings returns the settings used whenever a user has no
// stored row yet.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		CSP:        core.DefaultCSPSettings(),
		Newsletter: core.DefaultNewsletterSettings(),
	}
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetSettings loads the settings document for a user, falling back to the
// defaults when the user has never saved any.
func (r *SQLiteRepository) GetSettings(ctx context.Context, userID string) (UserSettings, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload_json FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultUserSettings(), nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("load settings: %w", err)
	}

	settings := DefaultUserSettings()
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return UserSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	if settings.CSP.CategoryMappings == nil {
		settings.CSP.CategoryMappings = map[string]core.Bucket{}
	}
	if settings.CSP.ExcludedIncomeCategories == nil {
		settings.CSP.ExcludedIncomeCategories = map[string]bool{}
	}
	if settings.CSP.ExcludedExpenseCategories == nil {
		settings.CSP.ExcludedExpenseCategories = map[string]bool{}
	}
	if settings.CSP.ExcludedPayees == nil {
		settings.CSP.ExcludedPayees = map[string]bool{}
	}
	return settings, nil
}

func (r *SQLiteRepository) SaveSettings(ctx context.Context, userID string, settings UserSettings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, payload_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			payload_json = excluded.payload_json,
			updated_at = CURRENT_TIMESTAMP`,
		userID, string(payload))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, user_id, week_ending, month, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UserID, snap.WeekEnding.UTC(), snap.Month, string(payload), snap.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns up to limit snapshots for a user, newest first.
// A missing table degrades to an empty history with a warning so history
// features simply show nothing instead of failing the run.
func (r *SQLiteRepository) ListSnapshots(ctx context.Context, userID string, limit int) ([]core.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payload_json FROM snapshots
		WHERE user_id = ?
		ORDER BY week_ending DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		if isMissingSchema(err) {
			slog.WarnContext(ctx, "snapshot history unavailable", "error", fmt.Errorf("%w: %v", core.ErrIndexMissing, err))
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []core.Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap core.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *SQLiteRepository) AppendRunLog(ctx context.Context, run core.RunLog) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}

	var snapshotID sql.NullString
	if run.SnapshotID != "" {
		snapshotID = sql.NullString{String: run.SnapshotID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_logs (id, user_id, status, errors_json, emails_sent, ai_tokens, snapshot_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, string(run.Status), string(errorsJSON),
		run.EmailsSent, run.AITokens, snapshotID,
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// ListRuns returns a user's run history, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, userID string, limit int) ([]core.RunLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, status, errors_json, emails_sent, ai_tokens, snapshot_id, started_at, finished_at
		FROM run_logs
		WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunLog
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LastCompletedRun returns the most recent run that actually produced a
// newsletter, used to suppress duplicate sends.
func (r *SQLiteRepository) LastCompletedRun(ctx context.Context, userID string) (core.RunLog, bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, status, errors_json, emails_sent, ai_tokens, snapshot_id, started_at, finished_at
		FROM run_logs
		WHERE user_id = ? AND status IN (?, ?)
		ORDER BY started_at DESC
		LIMIT 1`, userID, string(core.RunSuccess), string(core.RunPartial))
	if err != nil {
		return core.RunLog{}, false, fmt.Errorf("last completed run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return core.RunLog{}, false, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return core.RunLog{}, false, err
	}
	return run, true, nil
}

func scanRun(rows *sql.Rows) (core.RunLog, error) {
	var (
		run        core.RunLog
		status     string
		errorsJSON string
		snapshotID sql.NullString
	)
	if err := rows.Scan(&run.ID, &run.UserID, &status, &errorsJSON,
		&run.EmailsSent, &run.AITokens, &snapshotID,
		&run.StartedAt, &run.FinishedAt); err != nil {
		return core.RunLog{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = core.RunStatus(status)
	run.SnapshotID = snapshotID.String
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return core.RunLog{}, fmt.Errorf("decode run errors: %w", err)
	}
	return run, nil
}

func isMissingSchema(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
