// Package storage provides the SQLite backend that translated commands run
// against. It also answers the schema lookups the DROP COLUMN rewrite needs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ha1tch/jetlite/pkg/command"
	"github.com/ha1tch/jetlite/pkg/errors"
	"github.com/ha1tch/jetlite/pkg/interceptor"
	"github.com/ha1tch/jetlite/pkg/log"
)

// SQLiteStorage runs commands against a SQLite database. Exec and Query
// translate the command first when an interceptor is configured;
// ExecuteScalar never does, so schema lookups see the text they were given.
type SQLiteStorage struct {
	mu sync.RWMutex
	db *sql.DB

	interceptor *interceptor.Interceptor
	logger      *log.Logger

	// Path to database file (":memory:" for in-memory)
	path   string
	closed bool
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	// Path to database file. Use ":memory:" for in-memory database.
	Path string

	// Connection pool settings
	MaxOpenConns int
	MaxIdleConns int

	// SQLite-specific options
	JournalMode string // WAL, DELETE, TRUNCATE, PERSIST, MEMORY, OFF
	Synchronous string // OFF, NORMAL, FULL, EXTRA
	CacheSize   int    // Number of pages (negative = KB)
	BusyTimeout int    // Milliseconds
	ForeignKeys bool
}

// DefaultSQLiteConfig returns sensible defaults for SQLite.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:         ":memory:",
		MaxOpenConns: 1, // SQLite prefers single writer; also keeps :memory: on one connection
		MaxIdleConns: 1,
		JournalMode:  "WAL",
		Synchronous:  "NORMAL",
		CacheSize:    -2000, // 2MB
		BusyTimeout:  5000,  // 5 seconds
	}
}

// DSN builds the go-sqlite3 connection string for cfg.
func (cfg SQLiteConfig) DSN() string {
	var opts []string

	if cfg.CacheSize != 0 {
		opts = append(opts, fmt.Sprintf("_cache_size=%d", cfg.CacheSize))
	}
	if cfg.BusyTimeout > 0 {
		opts = append(opts, fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout))
	}
	if cfg.JournalMode != "" {
		opts = append(opts, fmt.Sprintf("_journal_mode=%s", cfg.JournalMode))
	}
	if cfg.Synchronous != "" {
		opts = append(opts, fmt.Sprintf("_synchronous=%s", cfg.Synchronous))
	}
	// Rebuilding a table under foreign keys would cascade deletes, so they
	// stay off unless asked for.
	if cfg.ForeignKeys {
		opts = append(opts, "_foreign_keys=ON")
	}

	if len(opts) == 0 {
		return cfg.Path
	}
	return cfg.Path + "?" + strings.Join(opts, "&")
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithInterceptor translates every Exec and Query through i.
func WithInterceptor(i *interceptor.Interceptor) Option {
	return func(s *SQLiteStorage) {
		s.interceptor = i
	}
}

// WithLogger sets the logger for storage events.
func WithLogger(l *log.Logger) Option {
	return func(s *SQLiteStorage) {
		s.logger = l
	}
}

// NewSQLiteStorage opens a SQLite database.
func NewSQLiteStorage(cfg SQLiteConfig, opts ...Option) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageConnect, "failed to open SQLite database").
			WithField("path", cfg.Path).Err()
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorageConnect, "failed to ping SQLite database").
			WithField("path", cfg.Path).Err()
	}

	s := NewWithDB(db, opts...)
	s.path = cfg.Path
	s.logger.Storage().Debug("database opened", "path", cfg.Path)
	return s, nil
}

// NewInMemorySQLiteStorage creates a new in-memory SQLite storage backend.
func NewInMemorySQLiteStorage(opts ...Option) (*SQLiteStorage, error) {
	return NewSQLiteStorage(DefaultSQLiteConfig(), opts...)
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, opts ...Option) *SQLiteStorage {
	s := &SQLiteStorage{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	return s
}

// ExecuteScalar returns the first column of the first row, or nil when the
// query yields no rows. TEXT read back as bytes is returned as a string.
func (s *SQLiteStorage) ExecuteScalar(ctx context.Context, cmd *command.Command) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeConnectionClosed, "storage is closed").Err()
	}

	var v interface{}
	err := s.db.QueryRowContext(ctx, cmd.Text, Args(cmd)...).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageQuery, "scalar query failed").
			WithField("sql", cmd.Text).Err()
	}

	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// Exec translates cmd and runs it in a transaction, returning the rows
// affected by the last statement. A DROP COLUMN rewrite is several
// statements; they commit or roll back together.
func (s *SQLiteStorage) Exec(ctx context.Context, cmd *command.Command) (int64, error) {
	if err := s.translate(ctx, cmd); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New(errors.ErrCodeConnectionClosed, "storage is closed").Err()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStorageExec, "failed to begin transaction").Err()
	}

	result, err := tx.ExecContext(ctx, cmd.Text, Args(cmd)...)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, errors.ErrCodeStorageExec, "exec error").
			WithField("sql", cmd.Text).Err()
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStorageExec, "commit failed").
			Critical().
			WithField("sql", cmd.Text).
			Err()
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeStorageExec, "rows affected").Err()
	}

	s.logger.Storage().Debug("exec", "rows", rowsAffected)
	return rowsAffected, nil
}

// Query translates cmd, runs it and returns the full result set.
func (s *SQLiteStorage) Query(ctx context.Context, cmd *command.Command) (*ResultSet, error) {
	if err := s.translate(ctx, cmd); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(errors.ErrCodeConnectionClosed, "storage is closed").Err()
	}

	rows, err := s.db.QueryContext(ctx, cmd.Text, Args(cmd)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageQuery, "query error").
			WithField("sql", cmd.Text).Err()
	}
	defer rows.Close()

	rs, err := scanResultSet(rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageQuery, "scan failed").Err()
	}

	s.logger.Storage().Debug("query", "rows", len(rs.Rows))
	return rs, nil
}

func (s *SQLiteStorage) translate(ctx context.Context, cmd *command.Command) error {
	if s.interceptor == nil {
		return nil
	}
	return s.interceptor.Intercept(ctx, cmd, s)
}

// DB returns the underlying database handle.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Path returns the database path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the storage backend.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Args binds each parameter by name: @id becomes sql.Named("id", v).
func Args(cmd *command.Command) []interface{} {
	args := make([]interface{}, 0, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		args = append(args, sql.Named(command.ArgName(p.Name), command.DriverValue(p.Value)))
	}
	return args
}
