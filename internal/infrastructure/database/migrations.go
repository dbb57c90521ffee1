package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewMigrator builds a migrator on an open connection.
//
// Parameters:
//   - db: Active database connection
//   - logger: Zap logger for migration logging
//
// Returns:
//   - *Migrator: Ready migrator
//   - error: Driver or source construction error
func NewMigrator(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &Migrator{m: m, logger: logger}, nil
}

// Version returns the applied version and dirty flag. A database with no
// migrations applied reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, dirty, nil
}

// Up executes all pending migrations. A dirty version left by a failed
// run is forced clean and retried.
func (mg *Migrator) Up() error {
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}

	if dirty {
		mg.logger.Warn("database migrations are dirty",
			zap.Uint("version", version))

		if err := mg.m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force migration version: %w", err)
		}
	}

	mg.logger.Info("running database migrations",
		zap.Uint("current_version", version))

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return mg.logVersion("database migrations completed")
}

// Down rolls back the last migration.
func (mg *Migrator) Down() error {
	version, _, err := mg.Version()
	if err != nil {
		return err
	}

	mg.logger.Info("rolling back migration",
		zap.Uint("current_version", version))

	if err := mg.m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	return mg.logVersion("migration rolled back")
}

// Goto migrates up or down to a specific version.
func (mg *Migrator) Goto(targetVersion uint) error {
	currentVersion, _, err := mg.Version()
	if err != nil {
		return err
	}

	mg.logger.Info("migrating to version",
		zap.Uint("current_version", currentVersion),
		zap.Uint("target_version", targetVersion))

	if err := mg.m.Migrate(targetVersion); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate to version %d: %w", targetVersion, err)
	}

	return mg.logVersion("migration completed")
}

// Force sets the recorded version without running any migration and
// clears the dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}

	mg.logger.Warn("migration version forced", zap.Int("version", version))

	return nil
}

// Close releases the source and database drivers. The database driver
// closes the *sql.DB the migrator was built on.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()

	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) logVersion(msg string) error {
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}

	mg.logger.Info(msg,
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))

	return nil
}
