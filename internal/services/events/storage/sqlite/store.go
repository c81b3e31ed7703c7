package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gigline/gigline/internal/platform/storage/sqlitemigrate"
	"github.com/gigline/gigline/internal/services/events/storage"
	"github.com/gigline/gigline/internal/services/events/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for event lifecycle state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens an events SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// PutEvent inserts one event row with its seeded status timestamp.
func (s *Store) PutEvent(ctx context.Context, record storage.EventRecord, seed storage.StatusTimestamp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeEventRecord(record)
	if err != nil {
		return err
	}
	seed.Status = strings.TrimSpace(seed.Status)
	if seed.Status == "" {
		return fmt.Errorf("seed status is required")
	}
	if seed.EnteredAt.IsZero() {
		return fmt.Errorf("seed entered_at is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback event write: %v", cause, rollbackErr)
		}
		return cause
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO events (
		id, organizer_id, title, readable_id, event_type, scheduled_at, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.OrganizerID,
		normalized.Title,
		normalized.ReadableID,
		normalized.EventType,
		toMillis(normalized.ScheduledAt),
		normalized.Status,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return rollbackWith(storage.ErrConflict)
		}
		return rollbackWith(fmt.Errorf("put event: %w", err))
	}

	if err := upsertStatusTimestampExec(ctx, tx, normalized.ID, seed.Status, seed.EnteredAt); err != nil {
		return rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event write: %w", err)
	}
	return nil
}

// GetEvent loads one event row by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventRecord{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return storage.EventRecord{}, fmt.Errorf("event id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, organizer_id, title, readable_id, event_type, scheduled_at, status, created_at, updated_at
FROM events
WHERE id = ?
`, eventID)
	record, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EventRecord{}, storage.ErrNotFound
		}
		return storage.EventRecord{}, fmt.Errorf("get event: %w", err)
	}
	return record, nil
}

// ListStatusTimestamps lists status timestamps for one event in entry order.
func (s *Store) ListStatusTimestamps(ctx context.Context, eventID string) ([]storage.StatusTimestamp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT status, entered_at
FROM event_status_timestamps
WHERE event_id = ?
ORDER BY entered_at ASC, status ASC
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list status timestamps: %w", err)
	}
	defer rows.Close()

	var results []storage.StatusTimestamp
	for rows.Next() {
		var entry storage.StatusTimestamp
		var enteredAt int64
		if err := rows.Scan(&entry.Status, &enteredAt); err != nil {
			return nil, fmt.Errorf("scan status timestamp row: %w", err)
		}
		entry.EnteredAt = fromMillis(enteredAt)
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status timestamp rows: %w", err)
	}
	return results, nil
}

// ListEvents lists events newest-first with cursor pagination.
func (s *Store) ListEvents(ctx context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.EventPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	limit := pageSize + 1
	if pageToken == "" {
		rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, organizer_id, title, readable_id, event_type, scheduled_at, status, created_at, updated_at
FROM events
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("list events: %w", err)
		}
		defer rows.Close()
		return collectEventPage(rows, pageSize)
	}

	tokenCreatedAt, err := s.eventCreatedAtByID(ctx, pageToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.EventPage{}, nil
		}
		return storage.EventPage{}, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, organizer_id, title, readable_id, event_type, scheduled_at, status, created_at, updated_at
FROM events
WHERE created_at < ? OR (created_at = ? AND id < ?)
ORDER BY created_at DESC, id DESC
LIMIT ?
`, toMillis(tokenCreatedAt), toMillis(tokenCreatedAt), pageToken, limit)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events with token: %w", err)
	}
	defer rows.Close()
	return collectEventPage(rows, pageSize)
}

// UpdateEventStatus commits a status transition with an optimistic
// concurrency condition on the previously observed status.
func (s *Store) UpdateEventStatus(ctx context.Context, eventID string, expectedStatus, newStatus string, enteredAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	expectedStatus = strings.TrimSpace(expectedStatus)
	newStatus = strings.TrimSpace(newStatus)
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}
	if expectedStatus == "" {
		return fmt.Errorf("expected status is required")
	}
	if newStatus == "" {
		return fmt.Errorf("new status is required")
	}
	if enteredAt.IsZero() {
		return fmt.Errorf("entered_at is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback status write: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(ctx, `
UPDATE events
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, newStatus, toMillis(enteredAt), eventID, expectedStatus)
	if err != nil {
		return rollbackWith(fmt.Errorf("update event status: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("update event status rows affected: %w", err))
	}
	if affected == 0 {
		// Distinguish a missing record from a lost optimistic write.
		var found int
		scanErr := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&found)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return rollbackWith(storage.ErrNotFound)
		}
		if scanErr != nil {
			return rollbackWith(fmt.Errorf("check event existence: %w", scanErr))
		}
		return rollbackWith(storage.ErrConditionFailed)
	}

	if err := upsertStatusTimestampExec(ctx, tx, eventID, newStatus, enteredAt); err != nil {
		return rollbackWith(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status write: %w", err)
	}
	return nil
}

func (s *Store) eventCreatedAtByID(ctx context.Context, eventID string) (time.Time, error) {
	var createdAtMillis int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT created_at FROM events WHERE id = ?`, eventID)
	if err := row.Scan(&createdAtMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("lookup event cursor: %w", err)
	}
	return fromMillis(createdAtMillis), nil
}

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func normalizeEventRecord(record storage.EventRecord) (storage.EventRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OrganizerID = strings.TrimSpace(record.OrganizerID)
	record.Title = strings.TrimSpace(record.Title)
	record.ReadableID = strings.TrimSpace(record.ReadableID)
	record.EventType = strings.TrimSpace(record.EventType)
	record.Status = strings.TrimSpace(record.Status)
	if record.ID == "" {
		return storage.EventRecord{}, fmt.Errorf("event id is required")
	}
	if record.Title == "" {
		return storage.EventRecord{}, fmt.Errorf("event title is required")
	}
	if record.Status == "" {
		return storage.EventRecord{}, fmt.Errorf("event status is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.EventRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return storage.EventRecord{}, fmt.Errorf("updated_at is required")
	}
	record.ScheduledAt = record.ScheduledAt.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func upsertStatusTimestampExec(ctx context.Context, execer sqlExecer, eventID, status string, enteredAt time.Time) error {
	_, err := execer.ExecContext(ctx, `
	INSERT INTO event_status_timestamps (event_id, status, entered_at)
	VALUES (?, ?, ?)
	ON CONFLICT(event_id, status) DO UPDATE SET
		entered_at = excluded.entered_at
	`, eventID, status, toMillis(enteredAt))
	if err != nil {
		return fmt.Errorf("upsert status timestamp: %w", err)
	}
	return nil
}

func scanEvent(scan scanner) (storage.EventRecord, error) {
	var record storage.EventRecord
	var scheduledAt int64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.OrganizerID,
		&record.Title,
		&record.ReadableID,
		&record.EventType,
		&scheduledAt,
		&record.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.EventRecord{}, err
	}
	record.ScheduledAt = fromMillis(scheduledAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func collectEventPage(rows *sql.Rows, pageSize int) (storage.EventPage, error) {
	page := storage.EventPage{
		Events: make([]storage.EventRecord, 0, pageSize),
	}
	for rows.Next() {
		record, err := scanEvent(rows.Scan)
		if err != nil {
			return storage.EventPage{}, fmt.Errorf("scan event row: %w", err)
		}
		page.Events = append(page.Events, record)
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("iterate event rows: %w", err)
	}
	if len(page.Events) > pageSize {
		page.NextPageToken = page.Events[pageSize-1].ID
		page.Events = page.Events[:pageSize]
	}
	return page, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
