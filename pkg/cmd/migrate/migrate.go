package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/config"
	"github.com/mpapenbr/pylonrace-go/pkg/db/migrate"
	"github.com/mpapenbr/pylonrace-go/pkg/utils"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		Long: "Applies the embedded schema to the postgres database given by --db " +
			"or, if --sqlite is set, to the sqlite flight recorder.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.SQLiteFile != "" {
				return startSQLiteMigration()
			}
			return startMigration(cmd)
		},
	}

	cmd.Flags().StringVar(&config.SQLiteFile,
		"sqlite",
		"",
		"path of the sqlite flight recorder to migrate")

	return cmd
}

func startSQLiteMigration() error {
	log.Info("Migrating sqlite recorder", log.String("file", config.SQLiteFile))
	if err := migrate.MigrateSQLite(config.SQLiteFile); err != nil {
		return err
	}
	log.Info("Migration done")
	return nil
}

func startMigration(cmd *cobra.Command) error {
	// wait for database
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	postgresAddr := utils.ExtractFromDBURL(config.DB)
	if err = utils.WaitForTCP(cmd.Context(), postgresAddr, timeout); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	dbURL := prepareURLForDB(config.DB)
	log.Info("Migrating database", log.String("addr", postgresAddr))
	if err := migrate.MigratePostgres(dbURL); err != nil {
		return err
	}
	log.Info("Migration done")
	return nil
}

func prepareURLForDB(url string) string {
	options := "sslmode=disable"
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return fmt.Sprintf("%s&%s", url, options)
	}
	return fmt.Sprintf("%s?%s", url, options)
}
