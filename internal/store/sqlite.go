package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
	"github.com/fencing-federation/intake-bot/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	insertMaxRetries = 3
	insertBaseDelay  = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath and applies
// pending migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets the stats page read while the bot writes.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveApplication inserts a new application row.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveApplication(ctx context.Context, app *domain.Application) (int64, error) {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}

	for i := 0; i < insertMaxRetries; i++ {
		id, err := s.insertApplicationOnce(ctx, app)
		if err == nil {
			app.ID = id
			return id, nil
		}

		if shared.IsSQLiteConflictError(err) && i < insertMaxRetries-1 {
			delay := insertBaseDelay * time.Duration(1<<i) // 50ms, 100ms
			slog.Debug("SaveApplication failed with SQLITE_BUSY, retrying",
				"user_id", app.UserID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return 0, fmt.Errorf("save application: %w", ctx.Err())
			}
		}

		return 0, fmt.Errorf("save application for %d: %w", app.UserID, err)
	}

	return 0, fmt.Errorf("save application for %d: retries exhausted", app.UserID)
}

func (s *SQLiteStore) insertApplicationOnce(ctx context.Context, app *domain.Application) (int64, error) {
	query := `
	INSERT INTO applications (user_id, username, full_name, phone, age, experience_level, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		app.UserID, app.Username, app.FullName,
		app.Phone, app.Age, app.ExperienceLevel,
		app.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// CountApplications returns the total number of saved applications.
func (s *SQLiteStore) CountApplications(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return count, nil
}

// ListApplications returns up to limit applications, newest first.
func (s *SQLiteStore) ListApplications(ctx context.Context, limit int) ([]*domain.Application, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, username, full_name, phone, age, experience_level, created_at
		FROM applications ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close application rows", "error", closeErr)
		}
	}()

	var apps []*domain.Application
	for rows.Next() {
		var app domain.Application
		var createdAt int64

		if err := rows.Scan(
			&app.ID, &app.UserID, &app.Username, &app.FullName,
			&app.Phone, &app.Age, &app.ExperienceLevel, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan application row: %w", err)
		}

		app.CreatedAt = time.Unix(createdAt, 0)
		apps = append(apps, &app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}

	return apps, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
