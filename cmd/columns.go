package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"table-sync/core/config"
	"table-sync/core/database"
	"table-sync/core/logger"
	"table-sync/feature/tablesync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// columnsCmd prints the column definitions of a table.
var columnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "Show the columns of a table",
	Long:  `Lists the columns table-sync sees for a table. Every column named in a desired-state document must appear here.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		svc := tablesync.NewService(nil, cfg.Storage.Bucket, l, db)
		cols, err := svc.Columns(ctx, args[0])
		if err != nil {
			return err
		}

		l.Debug("Inspected table", zap.String("table", args[0]), zap.Int("columns", len(cols)))
		printColumns(os.Stdout, cols)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(columnsCmd)
}

func printColumns(w io.Writer, cols []database.ColumnInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tTYPE\tNULL\tKEY\tDEFAULT")
	for _, c := range cols {
		def := "NULL"
		if c.Default != nil {
			def = *c.Default
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Field, c.Type, c.Null, c.Key, def)
	}
	_ = tw.Flush()
}
