package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"table-sync/core/config"
	"table-sync/core/database"
	"table-sync/core/logger"
	"table-sync/core/reconcile"
	"table-sync/core/storage"
	"table-sync/feature/tablesync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the sync command
	keyColumn     string
	sourceRef     string
	reportRef     string
	syncColumns   []string
	noTransaction bool
	dryRunSync    bool
	yesConfirm    bool
)

// syncCmd reconciles one table with a desired-state document.
var syncCmd = &cobra.Command{
	Use:   "sync <table>",
	Short: "Make a table match a desired-state document",
	Long: `Load a desired-state document, diff it against the table and apply the
minimal DELETE, UPDATE and INSERT statements.

The plan is always printed first. Changes are applied only after confirmation.

Examples:
  # Plan only
  sync users --source users.json --dry-run

  # Apply with interactive confirmation
  sync users --key id --source s3://state/users.yaml

  # Apply a directory of documents, non-interactive, with a report
  sync users --source s3://state/users/ --yes --report s3://reports/users/

  # Manage only two columns and skip the wrapping transaction
  sync users --source users.json --columns name,email --no-transaction --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&keyColumn, "key", "", "Key column (default from SYNC_KEY_COLUMN, else id)")
	syncCmd.Flags().StringVar(&sourceRef, "source", "", "Desired-state document: path or s3://bucket/object (prefix ending in / merges all documents)")
	syncCmd.Flags().StringVar(&reportRef, "report", "", "Write a JSON run report to a path or s3://bucket/object")
	syncCmd.Flags().StringSliceVar(&syncColumns, "columns", nil, "Manage only these columns (default: every column in the desired state)")
	syncCmd.Flags().BoolVar(&noTransaction, "no-transaction", false, "Run statements independently instead of in one transaction")
	syncCmd.Flags().BoolVar(&dryRunSync, "dry-run", false, "Plan only; no statement is executed")
	syncCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm changes (non-interactive)")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	req := buildRequest(cmd, args[0], cfg.Sync)
	report := reportRef
	if !cmd.Flags().Changed("report") {
		report = cfg.Sync.Report
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	run := &syncRun{
		svc:    tablesync.NewService(client, cfg.Storage.Bucket, l, db),
		logger: l,
		req:    req,
		report: report,
		yes:    yesConfirm,
		in:     os.Stdin,
		out:    os.Stdout,
	}
	return run.execute(ctx)
}

// syncRun is one sync invocation with its configuration resolved.
type syncRun struct {
	svc    *tablesync.Service
	logger *zap.Logger
	req    tablesync.Request
	report string
	yes    bool
	in     io.Reader
	out    io.Writer
}

func (r *syncRun) execute(ctx context.Context) error {
	startTime := time.Now()
	l := r.logger

	// Step 1: Load desired state
	desired, err := r.svc.LoadDesired(ctx, r.req)
	if err != nil {
		return fmt.Errorf("failed to load desired state: %w", err)
	}

	// Step 2: Plan (always runs)
	l.Info("Planning reconciliation...", zap.String("table", r.req.Table))
	plan, err := r.svc.Plan(ctx, r.req, desired)
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}

	// Step 3: Print report
	printSyncReport(l, plan)

	// Step 4: Apply (if there is work and it is confirmed)
	if plan.Diff.Changes() > 0 && !r.req.DryRun {
		if !confirmDestructiveAction(r.yes, r.in, r.out) {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		l.Info("Applying actions...")
	}

	summary, applyErr := r.svc.Apply(ctx, r.req, plan)
	logSummary(l, summary, applyErr)

	if r.report != "" {
		if err := r.svc.WriteReport(ctx, r.report, tablesync.NewReport(plan, summary, applyErr, startTime)); err != nil {
			l.Error("Failed to write report", zap.String("report", r.report), zap.Error(err))
		} else {
			l.Info("Report written", zap.String("report", r.report))
		}
	}

	if applyErr != nil {
		return fmt.Errorf("failed to apply plan: %w", applyErr)
	}
	return nil
}

// buildRequest merges command-line flags over the sync section of the config.
func buildRequest(cmd *cobra.Command, table string, defaults config.SyncConfig) tablesync.Request {
	req := tablesync.Request{
		Table:           table,
		KeyColumn:       defaults.KeyColumn,
		Source:          defaults.Source,
		Columns:         syncColumns,
		SkipTransaction: defaults.SkipTransaction,
		DryRun:          dryRunSync,
	}
	if cmd.Flags().Changed("key") {
		req.KeyColumn = keyColumn
	}
	if cmd.Flags().Changed("source") {
		req.Source = sourceRef
	}
	if cmd.Flags().Changed("no-transaction") {
		req.SkipTransaction = noTransaction
	}
	return req
}

// printSyncReport prints the plan using the logger.
func printSyncReport(l *zap.Logger, plan *reconcile.Plan) {
	s := plan.Summary()

	l.Info("Reconciliation plan",
		zap.String("run_id", plan.RunID),
		zap.String("table", plan.Table),
		zap.Strings("columns", plan.Columns),
		zap.Int("table_rows", len(plan.Snapshot)),
		zap.Int("desired_rows", len(plan.Desired)),
	)

	actions := plan.Actions()
	if len(actions) == 0 {
		l.Info("Table already matches the desired state", zap.Int("unchanged", s.Unchanged))
		return
	}

	l.Info("Planned actions",
		zap.Int("delete", s.Deleted),
		zap.Int("update", s.Updated),
		zap.Int("insert", s.Inserted),
		zap.Int("unchanged", s.Unchanged),
	)

	// Show sample of actions (max 5 for logger)
	maxShow := 5
	if len(actions) < maxShow {
		maxShow = len(actions)
	}
	for i := 0; i < maxShow; i++ {
		action := actions[i]
		fields := []zap.Field{
			zap.String("type", string(action.Type)),
			zap.String("key", action.Key),
		}
		if len(action.Values) > 0 {
			fields = append(fields, zap.Any("values", action.Values))
		}
		if len(action.Previous) > 0 {
			fields = append(fields, zap.Any("previous", action.Previous))
		}
		l.Info("Sample action", fields...)
	}
	if len(actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(actions)-maxShow))
	}
}

func logSummary(l *zap.Logger, s reconcile.Summary, err error) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("status", string(s.Status)),
		zap.Int("deleted", s.Deleted),
		zap.Int("updated", s.Updated),
		zap.Int("inserted", s.Inserted),
		zap.Int("unchanged", s.Unchanged),
	}

	switch {
	case err != nil:
		l.Error("Sync failed", append(fields, zap.Bool("connectivity", reconcile.IsConnectivity(err)), zap.Error(err))...)
	case s.DryRun:
		l.Info("Dry-run mode: No changes were made.", fields...)
	default:
		l.Info("Sync complete", fields...)
	}
}

// confirmDestructiveAction prompts on out and reads the answer from in,
// unless yes is set by the --yes flag.
func confirmDestructiveAction(yes bool, in io.Reader, out io.Writer) bool {
	if yes {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to apply these changes: ")
	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
