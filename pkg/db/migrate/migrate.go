package migrate

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// MigratePostgres applies the embedded schema to the database at dbURI
// (postgresql:// or postgres:// scheme).
func MigratePostgres(dbURI string) error {
	return up("migrations/postgres", PostgresURL(dbURI))
}

// MigrateSQLite applies the embedded schema to the sqlite file at path.
func MigrateSQLite(path string) error {
	return up("migrations/sqlite", "sqlite://"+path)
}

// PostgresURL rewrites a postgres connection url for the pgx migrate driver.
func PostgresURL(dbURI string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dbURI, prefix) {
			return "pgx5://" + strings.TrimPrefix(dbURI, prefix)
		}
	}
	return dbURI
}

func up(dir, dbURL string) error {
	source, err := iofs.New(migrations, dir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
