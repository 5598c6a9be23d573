package tablesync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"table-sync/core/reconcile"
	"table-sync/core/storage"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
)

// Report is the JSON record of one sync run.
type Report struct {
	RunID         string             `json:"run_id"`
	Table         string             `json:"table"`
	KeyColumn     string             `json:"key_column"`
	Columns       []string           `json:"columns"`
	Summary       reconcile.Summary  `json:"summary"`
	Actions       []reconcile.Action `json:"actions"`
	Error         string             `json:"error,omitempty"`
	RolledBack    bool               `json:"rolled_back,omitempty"`
	GeneratedAt   string             `json:"generated_at"`
	ExecutionTime string             `json:"execution_time"`
}

// NewReport builds the report for a planned or applied run. err is the apply
// error, if any.
func NewReport(plan *reconcile.Plan, summary reconcile.Summary, err error, started time.Time) *Report {
	r := &Report{
		RunID:         plan.RunID,
		Table:         plan.Table,
		KeyColumn:     plan.KeyColumn,
		Columns:       plan.Columns,
		Summary:       summary,
		Actions:       plan.Actions(),
		GeneratedAt:   time.Now().Format(time.RFC3339),
		ExecutionTime: time.Since(started).String(),
	}
	if err != nil {
		r.Error = err.Error()
		var applyErr *reconcile.ApplyError
		if errors.As(err, &applyErr) {
			r.RolledBack = applyErr.RolledBack
		}
	}
	return r
}

// WriteReport stores the report at ref, a local path or "s3://bucket/object".
// An empty bucket in ref means bucket, and a missing bucket is created. A
// prefix ref gets "<run_id>.json" appended.
func WriteReport(ctx context.Context, client storage.Client, bucket, ref string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if !storage.IsRemote(ref) {
		if err := os.WriteFile(ref, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report %s: %w", ref, err)
		}
		return nil
	}

	loc, err := storage.ParseLocation(ref, bucket)
	if err != nil {
		return err
	}
	if loc.IsPrefix() {
		loc.Object += report.RunID + ".json"
	}
	if client == nil {
		return fmt.Errorf("cannot write %s: object storage is not configured", ref)
	}

	exists, err := client.BucketExists(ctx, loc.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := client.MakeBucket(ctx, loc.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", loc.Bucket, err)
		}
	}

	_, err = client.PutObject(ctx, loc.Bucket, loc.Object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload report %s: %w", loc, err)
	}
	return nil
}
