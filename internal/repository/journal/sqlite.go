package journal

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// defaultSQLiteDSN is used when no DSN is configured.
const defaultSQLiteDSN = "file:drowsiness-monitor.db?_pragma=busy_timeout(5000)"

// SQLiteRepository keeps records in an sqlite table.
type SQLiteRepository struct {
	// db is the sqlite handle.
	db *sql.DB
}

// NewSQLiteRepository opens dsn and creates the schema when needed.
func NewSQLiteRepository(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultSQLiteDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single writer avoids SQLITE_BUSY between the dispatcher and readers.
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err = r.init(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return r, nil
}

// init creates the episodes table.
func (r *SQLiteRepository) init(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		episode_id INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		alert_fired INTEGER NOT NULL,
		escalation_fired INTEGER NOT NULL,
		hostname TEXT,
		username TEXT
	)`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Append implements Repository.
func (r *SQLiteRepository) Append(ctx context.Context, record *drowsiness.EpisodeRecord) error {
	if record == nil {
		return errRecordIsNotSet
	}

	var hostname, username sql.NullString
	if record.Actor != nil {
		hostname = sql.NullString{String: record.Actor.Hostname, Valid: true}
		username = sql.NullString{String: record.Actor.Username, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO episodes (episode_id, start_time, end_time, duration_ms, alert_fired, escalation_fired, hostname, username)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(record.EpisodeID), //nolint:gosec // Episode numbers stay far below MaxInt64.
		record.StartTime.UTC().Format(time.RFC3339Nano),
		record.EndTime.UTC().Format(time.RFC3339Nano),
		record.Duration.Milliseconds(),
		record.AlertFired,
		record.EscalationFired,
		hostname,
		username,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}

	return nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*drowsiness.EpisodeRecord, error) {
	query := `SELECT episode_id, start_time, end_time, duration_ms, alert_fired, escalation_fired, hostname, username
		FROM episodes ORDER BY id DESC`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var records []*drowsiness.EpisodeRecord

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	slices.Reverse(records)

	return records, nil
}

// scanRecord decodes the current row.
func scanRecord(rows *sql.Rows) (*drowsiness.EpisodeRecord, error) {
	var (
		episodeID          int64
		start, end         string
		durationMS         int64
		alert, escalation  bool
		hostname, username sql.NullString
	)

	if err := rows.Scan(&episodeID, &start, &end, &durationMS, &alert, &escalation, &hostname, &username); err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}

	startTime, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return nil, fmt.Errorf("%w: start_time: %w", errBadRecord, err)
	}

	endTime, err := time.Parse(time.RFC3339Nano, end)
	if err != nil {
		return nil, fmt.Errorf("%w: end_time: %w", errBadRecord, err)
	}

	record := &drowsiness.EpisodeRecord{
		EpisodeID:       uint64(episodeID), //nolint:gosec // Written from a uint64.
		StartTime:       startTime,
		EndTime:         endTime,
		Duration:        time.Duration(durationMS) * time.Millisecond,
		AlertFired:      alert,
		EscalationFired: escalation,
	}

	if hostname.Valid {
		record.Actor = &drowsiness.Actor{Hostname: hostname.String, Username: username.String}
	}

	return record, nil
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
