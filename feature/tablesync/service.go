package tablesync

import (
	"context"
	"fmt"
	"strings"

	"table-sync/core/database"
	"table-sync/core/logger"
	"table-sync/core/reconcile"
	"table-sync/core/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Request describes one sync run.
type Request struct {
	Table     string
	KeyColumn string
	Source    string
	// Columns restricts the managed columns; empty derives them from the desired state.
	Columns         []string
	SkipTransaction bool
	DryRun          bool
}

// Service handles table sync operations.
type Service struct {
	client storage.Client
	bucket string
	logger *zap.Logger
	db     *gorm.DB
	loader *Loader
}

// NewService creates a new table sync service. bucket is the default bucket
// for object storage references.
func NewService(client storage.Client, bucket string, logger *zap.Logger, db *gorm.DB) *Service {
	return &Service{
		client: client,
		bucket: bucket,
		logger: logger,
		db:     db,
		loader: NewLoader(client, bucket, logger),
	}
}

// LoadDesired reads the request's source document(s).
func (s *Service) LoadDesired(ctx context.Context, req Request) (reconcile.DesiredState, error) {
	return s.loader.Load(ctx, req.Source, req.KeyColumn)
}

// Plan checks the managed columns against the table definition and computes
// the diff. Nothing is written.
func (s *Service) Plan(ctx context.Context, req Request, desired reconcile.DesiredState) (*reconcile.Plan, error) {
	log := logger.WithTable(s.logger, req.Table, req.KeyColumn)

	opts := s.options(req, log)
	if err := reconcile.Validate(req.Table, req.KeyColumn, desired, opts); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, &reconcile.ConfigurationError{Field: "connection", Reason: "database handle is required"}
	}

	want := reconcile.ResolveColumns(desired, req.Columns, req.KeyColumn)
	if err := s.checkColumns(ctx, req.Table, want); err != nil {
		log.Error("Table definition check failed", zap.Error(err))
		return nil, err
	}

	return reconcile.ReconcileWithPlan(ctx, s.db, req.Table, req.KeyColumn, desired, opts)
}

// Apply executes a plan produced by Plan.
func (s *Service) Apply(ctx context.Context, req Request, plan *reconcile.Plan) (reconcile.Summary, error) {
	log := logger.WithTable(s.logger, req.Table, req.KeyColumn)
	return reconcile.ApplyPlan(ctx, s.db, plan, s.options(req, log))
}

// Sync loads, plans and applies in one call.
func (s *Service) Sync(ctx context.Context, req Request) (*reconcile.Plan, reconcile.Summary, error) {
	desired, err := s.LoadDesired(ctx, req)
	if err != nil {
		return nil, reconcile.Summary{}, err
	}
	plan, err := s.Plan(ctx, req, desired)
	if err != nil {
		return nil, reconcile.Summary{}, err
	}
	summary, err := s.Apply(ctx, req, plan)
	return plan, summary, err
}

// WriteReport stores report at ref, a local path or object storage reference.
func (s *Service) WriteReport(ctx context.Context, ref string, report *Report) error {
	return WriteReport(ctx, s.client, s.bucket, ref, report)
}

// Columns returns the table's column definitions.
func (s *Service) Columns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	cols, err := database.GetTableColumns(ctx, s.db, table)
	if err != nil {
		return nil, &reconcile.QueryError{Op: reconcile.OpSelect, Table: table, Err: err}
	}
	if len(cols) == 0 {
		return nil, &reconcile.QueryError{Op: reconcile.OpSelect, Table: table, Err: fmt.Errorf("table not found")}
	}
	return cols, nil
}

func (s *Service) checkColumns(ctx context.Context, table string, want []string) error {
	have, err := s.Columns(ctx, table)
	if err != nil {
		return err
	}
	if missing := database.MissingColumns(have, want); len(missing) > 0 {
		return &reconcile.QueryError{
			Op:    reconcile.OpSelect,
			Table: table,
			Err:   fmt.Errorf("unknown columns: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

func (s *Service) options(req Request, log *zap.Logger) reconcile.Options {
	return reconcile.Options{
		Columns:         req.Columns,
		SkipTransaction: req.SkipTransaction,
		DryRun:          req.DryRun,
		Logger:          log,
	}
}
