package leaderboard

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTableName = "leaderboard_schema_migrations"

// PostgresBlobStore implements BlobStore on a single Postgres table
type PostgresBlobStore struct {
	db *sql.DB
}

// NewPostgresBlobStore wraps an open database. Call Migrate first if the
// schema may be missing.
func NewPostgresBlobStore(db *sql.DB) *PostgresBlobStore {
	return &PostgresBlobStore{db: db}
}

// OpenPostgresBlobStore connects to databaseURL, applies migrations and
// returns a ready store
func OpenPostgresBlobStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresBlobStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresBlobStore(db), nil
}

// Migrate applies the embedded schema migrations
func Migrate(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetLogger(&slogGooseLogger{logger: logger})
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// LoadBlob reads the blob stored under key
func (p *PostgresBlobStore) LoadBlob(ctx context.Context, key string) (string, error) {
	var blob string
	err := p.db.QueryRowContext(ctx, `SELECT blob FROM leaderboard_blobs WHERE key = $1`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load blob %q: %w", key, err)
	}
	return blob, nil
}

// SaveBlob upserts the blob stored under key
func (p *PostgresBlobStore) SaveBlob(ctx context.Context, key, blob string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO leaderboard_blobs (key, blob, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`,
		key, blob)
	if err != nil {
		return fmt.Errorf("failed to save blob %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database
func (p *PostgresBlobStore) Close() error {
	return p.db.Close()
}

// slogGooseLogger adapts the goose logger interface to slog
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level and does not exit; goose.Up still returns the error.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
