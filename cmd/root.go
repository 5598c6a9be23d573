package cmd

import (
	"fmt"
	"os"

	"table-sync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "table-sync",
	Short: "Reconcile a database table with a desired dataset",
	Long: `table-sync makes a relational table match a keyed desired state with the
minimal set of DELETE, UPDATE and INSERT statements.
Desired state is read from local files or S3/MinIO objects in JSON or YAML.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format at debug level gives ISO8601 timestamps for CLI output.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
