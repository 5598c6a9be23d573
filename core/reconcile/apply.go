package reconcile

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyPlan executes the statements of plan: deletions, then updates, then
// insertions. Unless opts.SkipTransaction is set they run in one transaction
// that is rolled back on the first failure.
//
// On failure the returned error is an *ApplyError wrapping the failed
// statement's *QueryError; the returned Summary counts only persisted work.
// With opts.DryRun the planned counts are returned and nothing is executed.
func ApplyPlan(ctx context.Context, db *gorm.DB, plan *Plan, opts Options) (Summary, error) {
	if plan == nil {
		return Summary{}, &ConfigurationError{Field: "plan", Reason: "plan is required"}
	}
	if opts.DryRun {
		s := plan.Summary()
		s.DryRun = true
		return s, nil
	}
	if db == nil {
		return Summary{}, &ConfigurationError{Field: "connection", Reason: "database handle is required"}
	}

	log := opts.logger().With(zap.String("run_id", plan.RunID), zap.String("table", plan.Table))
	summary := Summary{RunID: plan.RunID, Unchanged: len(plan.Snapshot)}

	var err error
	if opts.SkipTransaction {
		err = applyDiff(db.WithContext(ctx), plan, &summary, log)
	} else {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return applyDiff(tx, plan, &summary, log)
		})
	}

	if err != nil {
		var qe *QueryError
		if !errors.As(err, &qe) {
			err = &QueryError{Op: OpTransaction, Table: plan.Table, Err: err}
		}

		applyErr := &ApplyError{Err: err, RolledBack: !opts.SkipTransaction}
		if applyErr.RolledBack {
			log.Warn("Rolled back reconciliation",
				zap.Int("discarded_deletes", summary.Deleted),
				zap.Int("discarded_updates", summary.Updated),
				zap.Int("discarded_inserts", summary.Inserted),
				zap.Error(err),
			)
			summary = Summary{RunID: plan.RunID, Unchanged: len(plan.Snapshot)}
		} else {
			log.Error("Reconciliation stopped with partial changes",
				zap.Int("deleted", summary.Deleted),
				zap.Int("updated", summary.Updated),
				zap.Int("inserted", summary.Inserted),
				zap.Error(err),
			)
		}
		summary.finalize()
		applyErr.Summary = summary
		return summary, applyErr
	}

	summary.finalize()
	log.Info("Applied reconciliation",
		zap.Int("deleted", summary.Deleted),
		zap.Int("updated", summary.Updated),
		zap.Int("inserted", summary.Inserted),
		zap.Int("unchanged", summary.Unchanged),
		zap.String("status", string(summary.Status)),
	)
	return summary, nil
}

// applyDiff runs every planned statement on tx, counting successes into summary.
func applyDiff(tx *gorm.DB, plan *Plan, summary *Summary, log *zap.Logger) error {
	for _, key := range plan.Diff.Delete {
		sql, args := deleteStatement(tx, plan.Table, plan.KeyColumn, plan.tableKey(key))
		if err := tx.Exec(sql, args...).Error; err != nil {
			return &QueryError{Op: OpDelete, Table: plan.Table, Key: key, Err: err}
		}
		summary.Deleted++
		summary.Unchanged--
		log.Debug("Deleted row", zap.String("key", key))
	}

	for _, u := range plan.Diff.Update {
		row := plan.Desired[u.Key]
		values := make([]Value, len(u.Columns))
		for i, col := range u.Columns {
			values[i] = row[col]
		}
		sql, args := updateStatement(tx, plan.Table, plan.KeyColumn, u.Columns, values, plan.tableKey(u.Key))
		if err := tx.Exec(sql, args...).Error; err != nil {
			return &QueryError{Op: OpUpdate, Table: plan.Table, Key: u.Key, Err: err}
		}
		summary.Updated++
		summary.Unchanged--
		log.Debug("Updated row", zap.String("key", u.Key), zap.Strings("columns", u.Columns))
	}

	for _, key := range plan.Diff.Insert {
		sql, args := insertStatement(tx, plan.Table, plan.Columns, plan.insertValues(key))
		if err := tx.Exec(sql, args...).Error; err != nil {
			return &QueryError{Op: OpInsert, Table: plan.Table, Key: key, Err: err}
		}
		summary.Inserted++
		log.Debug("Inserted row", zap.String("key", key))
	}

	return nil
}

func deleteStatement(db *gorm.DB, table, keyColumn string, key Value) (string, []any) {
	sql := "DELETE FROM " + quote(db, table) + " WHERE " + quote(db, keyColumn) + " = ?"
	return sql, []any{key.Interface()}
}

func updateStatement(db *gorm.DB, table, keyColumn string, columns []string, values []Value, key Value) (string, []any) {
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, col := range columns {
		sets[i] = quote(db, col) + " = ?"
		args = append(args, values[i].Interface())
	}
	args = append(args, key.Interface())

	sql := "UPDATE " + quote(db, table) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + quote(db, keyColumn) + " = ?"
	return sql, args
}

func insertStatement(db *gorm.DB, table string, columns ColumnSet, values []Value) (string, []any) {
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i := range columns {
		placeholders[i] = "?"
		args[i] = values[i].Interface()
	}

	sql := "INSERT INTO " + quote(db, table) + " (" + quoteList(db, columns) + ") VALUES (" +
		strings.Join(placeholders, ",") + ")"
	return sql, args
}
