package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/pylonrace-go/pkg/config"
)

// AddLogFlags registers the logging flags on cmd.
func AddLogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"info",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (text, json)")
	cmd.Flags().StringVar(&config.LogFile,
		"log-file",
		"",
		"additionally write json logs to this rotated file")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. '*:* -debug:race.nav'")
}
