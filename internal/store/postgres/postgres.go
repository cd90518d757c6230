// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/kconfig/internal/model"
	"github.com/groblegark/kconfig/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateConfig(ctx context.Context, c *model.Config) error {
	return queryCreateConfig(ctx, s.db, c)
}

func (s *PostgresStore) GetConfig(ctx context.Context, id string) (*model.Config, error) {
	return queryGetConfig(ctx, s.db, id)
}

func (s *PostgresStore) GetConfigByName(ctx context.Context, projectID, name string) (*model.Config, error) {
	return queryGetConfigByName(ctx, s.db, projectID, name)
}

func (s *PostgresStore) ListConfigs(ctx context.Context, filter model.ConfigFilter) ([]*model.Config, int, error) {
	return queryListConfigs(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateConfig(ctx context.Context, c *model.Config, expectedVersion int64) error {
	return queryUpdateConfig(ctx, s.db, c, expectedVersion)
}

func (s *PostgresStore) DeleteConfig(ctx context.Context, id string) error {
	return queryDeleteConfig(ctx, s.db, id)
}

func (s *PostgresStore) CreateVariant(ctx context.Context, v *model.Variant) error {
	return queryCreateVariant(ctx, s.db, v)
}

func (s *PostgresStore) GetVariant(ctx context.Context, id string) (*model.Variant, error) {
	return queryGetVariant(ctx, s.db, id)
}

func (s *PostgresStore) GetVariantByEnvironment(ctx context.Context, configID, environmentID string) (*model.Variant, error) {
	return queryGetVariantByEnvironment(ctx, s.db, configID, environmentID)
}

func (s *PostgresStore) ListVariants(ctx context.Context, configID string) ([]*model.Variant, error) {
	return queryListVariants(ctx, s.db, configID)
}

func (s *PostgresStore) UpdateVariant(ctx context.Context, v *model.Variant, expectedVersion int64) error {
	return queryUpdateVariant(ctx, s.db, v, expectedVersion)
}

func (s *PostgresStore) DeleteVariant(ctx context.Context, id string) error {
	return queryDeleteVariant(ctx, s.db, id)
}

func (s *PostgresStore) CreateProposal(ctx context.Context, p *model.Proposal) error {
	return queryCreateProposal(ctx, s.db, p)
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	return queryGetProposal(ctx, s.db, id)
}

func (s *PostgresStore) ListProposals(ctx context.Context, filter model.ProposalFilter) ([]*model.Proposal, error) {
	return queryListProposals(ctx, s.db, filter)
}

func (s *PostgresStore) ListPendingProposals(ctx context.Context, configID string, scope model.ProposalScope, variantID string) ([]*model.Proposal, error) {
	return queryListPendingProposals(ctx, s.db, configID, scope, variantID)
}

func (s *PostgresStore) ResolveProposal(ctx context.Context, id string, res model.Resolution) error {
	return queryResolveProposal(ctx, s.db, id, res)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateConfig(ctx context.Context, c *model.Config) error {
	return queryCreateConfig(ctx, s.tx, c)
}

func (s *txStore) GetConfig(ctx context.Context, id string) (*model.Config, error) {
	return queryGetConfig(ctx, s.tx, id)
}

func (s *txStore) GetConfigByName(ctx context.Context, projectID, name string) (*model.Config, error) {
	return queryGetConfigByName(ctx, s.tx, projectID, name)
}

func (s *txStore) ListConfigs(ctx context.Context, filter model.ConfigFilter) ([]*model.Config, int, error) {
	return queryListConfigs(ctx, s.tx, filter)
}

func (s *txStore) UpdateConfig(ctx context.Context, c *model.Config, expectedVersion int64) error {
	return queryUpdateConfig(ctx, s.tx, c, expectedVersion)
}

func (s *txStore) DeleteConfig(ctx context.Context, id string) error {
	return queryDeleteConfig(ctx, s.tx, id)
}

func (s *txStore) CreateVariant(ctx context.Context, v *model.Variant) error {
	return queryCreateVariant(ctx, s.tx, v)
}

func (s *txStore) GetVariant(ctx context.Context, id string) (*model.Variant, error) {
	return queryGetVariant(ctx, s.tx, id)
}

func (s *txStore) GetVariantByEnvironment(ctx context.Context, configID, environmentID string) (*model.Variant, error) {
	return queryGetVariantByEnvironment(ctx, s.tx, configID, environmentID)
}

func (s *txStore) ListVariants(ctx context.Context, configID string) ([]*model.Variant, error) {
	return queryListVariants(ctx, s.tx, configID)
}

func (s *txStore) UpdateVariant(ctx context.Context, v *model.Variant, expectedVersion int64) error {
	return queryUpdateVariant(ctx, s.tx, v, expectedVersion)
}

func (s *txStore) DeleteVariant(ctx context.Context, id string) error {
	return queryDeleteVariant(ctx, s.tx, id)
}

func (s *txStore) CreateProposal(ctx context.Context, p *model.Proposal) error {
	return queryCreateProposal(ctx, s.tx, p)
}

func (s *txStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	return queryGetProposal(ctx, s.tx, id)
}

func (s *txStore) ListProposals(ctx context.Context, filter model.ProposalFilter) ([]*model.Proposal, error) {
	return queryListProposals(ctx, s.tx, filter)
}

func (s *txStore) ListPendingProposals(ctx context.Context, configID string, scope model.ProposalScope, variantID string) ([]*model.Proposal, error) {
	return queryListPendingProposals(ctx, s.tx, configID, scope, variantID)
}

func (s *txStore) ResolveProposal(ctx context.Context, id string, res model.Resolution) error {
	return queryResolveProposal(ctx, s.tx, id, res)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
