// Package cmd implements the migrate command tree.
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/config"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/database"
)

// migrator is the subset of database.Migrator the commands use.
type migrator interface {
	Up() error
	Down() error
	Goto(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() error
}

// opener connects to the database and returns a migrator.
type opener func(ctx context.Context, cfg database.Config, logger *zap.Logger) (migrator, error)

type flagValues struct {
	envFile string
	host    string
	port    int
	user    string
	dbName  string
	sslMode string
	timeout time.Duration
}

// NewRootCmd builds the command tree connected to PostgreSQL.
func NewRootCmd() *cobra.Command {
	return newRootCmd(openPostgres)
}

func newRootCmd(open opener) *cobra.Command {
	flags := &flagValues{}

	var logger *zap.Logger

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "City weather service database migrations",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error

			logger, err = zap.NewProduction()

			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringVar(&flags.envFile, "env-file", "", "Optional .env file to load before reading DB_* variables")
	pf.StringVar(&flags.host, "host", "", "Database host (overrides DB_HOST)")
	pf.IntVar(&flags.port, "port", 0, "Database port (overrides DB_PORT)")
	pf.StringVar(&flags.user, "user", "", "Database user (overrides DB_USER)")
	pf.StringVar(&flags.dbName, "database", "", "Database name (overrides DB_NAME)")
	pf.StringVar(&flags.sslMode, "sslmode", "", "SSL mode (overrides DB_SSLMODE)")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "Connection timeout")

	// run opens a migrator, applies fn and reports the resulting version.
	run := func(cmd *cobra.Command, fn func(m migrator) error) error {
		cfg, err := flags.databaseConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		defer cancel()

		m, err := open(ctx, cfg, logger)
		if err != nil {
			return err
		}

		defer func() {
			if err := m.Close(); err != nil {
				logger.Warn("failed to close migrator", zap.Error(err))
			}
		}()

		if err := fn(m); err != nil {
			return err
		}

		version, dirty, err := m.Version()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)

		return nil
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, migrator.Up)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, migrator.Down)
			},
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate up or down to a version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}

				return run(cmd, func(m migrator) error { return m.Goto(uint(version)) })
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the recorded version and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}

				return run(cmd, func(m migrator) error { return m.Force(version) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(migrator) error { return nil })
			},
		},
	)

	return rootCmd
}

// databaseConfig reads DB_* settings through the config package and applies
// flag overrides.
func (f *flagValues) databaseConfig() (database.Config, error) {
	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return database.Config{}, err
	}

	db := cfg.Database
	out := database.Config{
		Host:                  db.Host,
		Port:                  db.Port,
		User:                  db.User,
		Password:              db.Password,
		Database:              db.Database,
		SSLMode:               db.SSLMode,
		MaxConnections:        2,
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: db.ConnectionMaxLifetime,
	}

	if f.host != "" {
		out.Host = f.host
	}

	if f.port != 0 {
		out.Port = f.port
	}

	if f.user != "" {
		out.User = f.user
	}

	if f.dbName != "" {
		out.Database = f.dbName
	}

	if f.sslMode != "" {
		out.SSLMode = f.sslMode
	}

	return out, nil
}

func openPostgres(ctx context.Context, cfg database.Config, logger *zap.Logger) (migrator, error) {
	db, err := database.NewPostgresDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m, err := database.NewMigrator(db.DB(), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return m, nil
}
