package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql
	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/output"
	"github.com/agonych/udp-chat/internal/logger"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/store"
	"github.com/agonych/udp-chat/pkg/store/migrations"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database and schema",
	Long: `Create the configured database and bring its schema up to date.

For SQLite this creates the database file and schema in one step. For
PostgreSQL the target database is created first if it does not exist
(the configured user needs the CREATEDB privilege), then the embedded
SQL migrations are applied.

The server also migrates the schema on startup, so this command is only
required for PostgreSQL deployments where the database itself has to be
provisioned, or to prepare a database ahead of the first start.

Examples:
  # Initialize with default config
  udpchat initdb

  # Initialize with custom config
  udpchat initdb --config /etc/udpchat/config.yaml`,
	RunE: runInitDB,
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	storeCfg := cfg.Database.ToStoreConfig()
	storeCfg.ApplyDefaults()

	logger.Info("Initializing database", "type", storeCfg.Type)

	if storeCfg.Type == store.DatabaseTypePostgres {
		if err := ensureDatabase(ctx, &storeCfg.Postgres); err != nil {
			return fmt.Errorf("failed to ensure database exists: %w", err)
		}
		if err := runMigrations(ctx, &storeCfg.Postgres); err != nil {
			return err
		}
	}

	// Open the store; on SQLite this creates the schema via AutoMigrate,
	// on PostgreSQL it verifies the migrated schema connects cleanly.
	st, err := store.New(storeCfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the schema works by running a trivial query
	if _, err := st.ListUsers(ctx); err != nil {
		return fmt.Errorf("schema verification failed: %w", err)
	}

	output.DefaultPrinter().Success(fmt.Sprintf("Database initialized successfully (type: %s)", storeCfg.Type))
	return nil
}

// ensureDatabase creates the target PostgreSQL database when it does not
// exist yet, connecting through the maintenance database.
func ensureDatabase(ctx context.Context, cfg *store.PostgresConfig) error {
	admin := *cfg
	admin.Database = "postgres"

	conn, err := pgx.Connect(ctx, admin.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)",
		cfg.Database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for database: %w", err)
	}
	if exists {
		logger.Debug("Database already exists", "database", cfg.Database)
		return nil
	}

	// CREATE DATABASE cannot take bind parameters
	stmt := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{cfg.Database}.Sanitize())
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %q: %w", cfg.Database, err)
	}

	logger.Info("Database created", "database", cfg.Database)
	return nil
}

// runMigrations applies the embedded SQL migrations with golang-migrate.
// Concurrent runs are safe; golang-migrate serializes them with a
// PostgreSQL advisory lock.
func runMigrations(ctx context.Context, cfg *store.PostgresConfig) error {
	logger.Info("Running database migrations...")

	// golang-migrate drives a database/sql connection
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply (database is up to date)")
	} else {
		logger.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if err != migrate.ErrNilVersion {
		logger.Info("Current schema version", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("Database schema is in dirty state - manual intervention may be required")
		}
	}

	return nil
}
