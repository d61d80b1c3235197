package testdb

import (
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	tcpg "github.com/mpapenbr/pylonrace-go/testsupport/tcpostgres"
)

// InitTestDb returns a pool on an empty, migrated database. Tests are skipped
// in short mode since they need docker or TESTDB_URL.
func InitTestDb(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	var pool *pgxpool.Pool

	if os.Getenv("TESTDB_URL") != "" {
		pool = tcpg.SetupExternalTestDb()
	} else {
		pool = tcpg.SetupTestDb()
	}
	tcpg.ClearAllTables(pool)
	t.Cleanup(pool.Close)
	return pool
}
