package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turnover/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// у каждого соединения :memory: своя база
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path is the file the database lives in, or ":memory:".
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            external_account_id TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            api_key TEXT NOT NULL,
            api_secret TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'active',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS properties (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account_id INTEGER NOT NULL REFERENCES accounts(id),
            external_listing_id TEXT NOT NULL,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            city TEXT NOT NULL DEFAULT '',
            country TEXT NOT NULL DEFAULT '',
            property_type TEXT NOT NULL DEFAULT 'apartment',
            bedrooms INTEGER NOT NULL DEFAULT 0,
            bathrooms INTEGER NOT NULL DEFAULT 0,
            estimated_cleaning_time INTEGER NOT NULL DEFAULT 120,
            special_instructions TEXT NOT NULL DEFAULT '',
            access_instructions TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE(account_id, external_listing_id)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account_id INTEGER NOT NULL REFERENCES accounts(id),
            property_id INTEGER NOT NULL REFERENCES properties(id),
            external_booking_id TEXT NOT NULL,
            guest_name TEXT NOT NULL DEFAULT '',
            guest_email TEXT,
            guest_phone TEXT,
            check_in DATETIME NOT NULL,
            check_out DATETIME NOT NULL,
            number_of_guests INTEGER NOT NULL DEFAULT 1,
            booking_status TEXT NOT NULL,
            total_price REAL NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE(account_id, external_booking_id),
            CHECK (check_out > check_in)
        )`,
		`CREATE TABLE IF NOT EXISTS workers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT UNIQUE,
            phone TEXT NOT NULL DEFAULT '',
            rating REAL NOT NULL DEFAULT 0,
            total_tasks INTEGER NOT NULL DEFAULT 0,
            completed_tasks INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'active',
            telegram_chat_id INTEGER,
            language TEXT NOT NULL DEFAULT 'en',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS cleaning_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL UNIQUE REFERENCES bookings(id),
            property_id INTEGER NOT NULL REFERENCES properties(id),
            worker_id INTEGER REFERENCES workers(id),
            scheduled_time DATETIME NOT NULL,
            started_at DATETIME,
            completed_at DATETIME,
            status TEXT NOT NULL DEFAULT 'pending',
            priority TEXT NOT NULL DEFAULT 'normal',
            estimated_duration INTEGER NOT NULL,
            actual_duration INTEGER,
            notes TEXT NOT NULL DEFAULT '',
            worker_notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS task_checklist_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_id INTEGER NOT NULL REFERENCES cleaning_tasks(id),
            item TEXT NOT NULL,
            completed BOOLEAN NOT NULL DEFAULT 0,
            completed_at DATETIME,
            order_index INTEGER NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS task_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_id INTEGER NOT NULL REFERENCES cleaning_tasks(id),
            status TEXT NOT NULL,
            changed_by INTEGER NOT NULL,
            changed_by_type TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS task_reminders (
            task_id INTEGER NOT NULL REFERENCES cleaning_tasks(id),
            worker_id INTEGER NOT NULL REFERENCES workers(id),
            mark INTEGER NOT NULL,
            sent_at DATETIME NOT NULL,
            PRIMARY KEY (task_id, worker_id, mark)
        )`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            user_type TEXT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL,
            data TEXT NOT NULL DEFAULT '{}',
            is_read BOOLEAN NOT NULL DEFAULT 0,
            sent_at DATETIME,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            entity_id INTEGER NOT NULL,
            payload TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            account_id TEXT NOT NULL,
            status TEXT NOT NULL,
            listings_count INTEGER NOT NULL DEFAULT 0,
            reservations_count INTEGER NOT NULL DEFAULT 0,
            skipped_count INTEGER NOT NULL DEFAULT 0,
            tasks_created INTEGER NOT NULL DEFAULT 0,
            error TEXT NOT NULL DEFAULT '',
            started_at DATETIME NOT NULL,
            finished_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_property_check_in ON bookings(property_id, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_scheduled ON cleaning_tasks(status, scheduled_time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_worker ON cleaning_tasks(worker_id)`,
		`CREATE INDEX IF NOT EXISTS idx_checklist_task ON task_checklist_items(task_id, order_index)`,
		`CREATE INDEX IF NOT EXISTS idx_history_task ON task_history(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_type, user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound and wraps everything else.
func notFound(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
