// Package postgres is the durable ConfigStore.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable keeps switchboard's schema version apart from other
// applications sharing the database.
const migrationsTable = "switchboard_schema_migrations"

// Options size the connection pool. Zero values take the defaults.
type Options struct {
	MaxOpenConns    int           // default 10
	MaxIdleConns    int           // default 2
	ConnMaxLifetime time.Duration // default 5m
	ConnectTimeout  time.Duration // default 10s, bounds ping and migrations
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = min(2, o.MaxOpenConns)
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 5 * time.Minute
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	return o
}

// Store keeps channel configs in the channel_configs table.
type Store struct {
	db *sql.DB
}

var _ store.ConfigStore = (*Store)(nil)

// New connects, sizes the pool and brings the schema up to date.
func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrateUp(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		conn.Close()
		return fmt.Errorf("migrations: database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("migrations: source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("migrations: %w", err)
	}
	// Closing the migrator releases conn back to the pool.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: apply: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetChannelConfig(ctx context.Context, instanceName string, channel model.ChannelType) (*model.ChannelRecord, error) {
	return queryGetChannelConfig(ctx, s.db, instanceName, channel)
}

func (s *Store) SetChannelConfig(ctx context.Context, rec *model.ChannelRecord) error {
	return querySetChannelConfig(ctx, s.db, rec)
}

func (s *Store) ListChannelConfigs(ctx context.Context) ([]*model.ChannelRecord, error) {
	return queryListChannelConfigs(ctx, s.db)
}
