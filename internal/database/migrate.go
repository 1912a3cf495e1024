package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"quiz-deck/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	oracleMigrationsDir = "migrations/oracle"
	mongoMigrationsDir  = "migrations/mongo"
)

// Execer is the subset of *sqlx.DB the Oracle migration runner needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OracleSource returns the embedded Oracle migrations, or the ones in dir when it is set.
func OracleSource(dir string) (source.Driver, error) {
	if dir != "" {
		return iofs.New(os.DirFS(dir), ".")
	}
	return iofs.New(migrationsFS, oracleMigrationsDir)
}

// RunMigrations applies pending up migrations to Oracle and returns how many ran.
// golang-migrate ships no Oracle database driver, so versions are tracked in
// schema_migrations here while the migrate source driver reads the files.
func RunMigrations(ctx context.Context, db Execer, src source.Driver) (int, error) {
	defer src.Close()

	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}

	var current sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("could not read schema version: %w", err)
	}

	applied := 0
	version, err := src.First()
	for err == nil {
		if int64(version) > current.Int64 {
			if err := applyUp(ctx, db, src, version); err != nil {
				return applied, err
			}
			applied++
		}
		version, err = src.Next(version)
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrNotExist) {
		return applied, fmt.Errorf("could not list migrations: %w", err)
	}

	logger.Get().Info("Migrations completed successfully", zap.Int("applied", applied))
	return applied, nil
}

func ensureVersionTable(ctx context.Context, db Execer) error {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_tables WHERE table_name = 'SCHEMA_MIGRATIONS'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("could not check schema_migrations table: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.ExecContext(ctx, `CREATE TABLE schema_migrations (version NUMBER(19) NOT NULL PRIMARY KEY, applied_at TIMESTAMP DEFAULT SYSTIMESTAMP NOT NULL)`)
	if err != nil {
		return fmt.Errorf("could not create schema_migrations table: %w", err)
	}
	return nil
}

func applyUp(ctx context.Context, db Execer, src source.Driver, version uint) error {
	r, identifier, err := src.ReadUp(version)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read migration %d: %w", version, err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("could not read migration %d: %w", version, err)
	}

	for _, stmt := range SplitStatements(string(content)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not execute migration %d_%s: %w", version, identifier, err)
		}
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (:1)`, int64(version)); err != nil {
		return fmt.Errorf("could not record migration %d: %w", version, err)
	}

	logger.Get().Info("Executed migration", zap.Uint("version", version), zap.String("name", identifier))
	return nil
}

// SplitStatements splits a script on semicolons that end a line. Oracle rejects
// multiple statements and trailing semicolons in a single Exec.
func SplitStatements(script string) []string {
	var stmts []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(strings.TrimRight(line, " \t\r"), ";"))
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

// RunMongoMigrations applies the embedded index migrations with the golang-migrate MongoDB driver.
func RunMongoMigrations(client *mongo.Client, databaseName string) error {
	driver, err := mongodb.WithInstance(client, &mongodb.Config{DatabaseName: databaseName})
	if err != nil {
		return fmt.Errorf("could not create MongoDB migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, mongoMigrationsDir)
	if err != nil {
		return fmt.Errorf("could not open MongoDB migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run MongoDB migrations: %w", err)
	}

	logger.Get().Info("MongoDB migrations completed successfully", zap.String("database", databaseName))
	return nil
}
