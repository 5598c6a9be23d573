package reconcile

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Plan is the outcome of the read-only stages of a reconciliation.
// It does not execute anything; pass it to ApplyPlan for that.
type Plan struct {
	// RunID identifies the run in logs, summaries and reports.
	RunID string `json:"run_id"`

	Table     string     `json:"table"`
	KeyColumn string     `json:"key_column"`
	Columns   ColumnSet  `json:"columns"`
	Diff      DiffResult `json:"diff"`

	Snapshot Snapshot     `json:"-"`
	Desired  DesiredState `json:"-"`
}

// ReconcileWithPlan validates the input, resolves the column set, loads the
// table snapshot and computes the diff. Nothing is written.
func ReconcileWithPlan(
	ctx context.Context,
	db *gorm.DB,
	table string,
	keyColumn string,
	desired DesiredState,
	opts Options,
) (*Plan, error) {
	if db == nil {
		return nil, &ConfigurationError{Field: "connection", Reason: "database handle is required"}
	}
	if err := Validate(table, keyColumn, desired, opts); err != nil {
		return nil, err
	}

	plan := &Plan{
		RunID:     uuid.NewString(),
		Table:     table,
		KeyColumn: keyColumn,
		Desired:   desired,
	}
	log := opts.logger().With(zap.String("run_id", plan.RunID), zap.String("table", table))

	plan.Columns = ResolveColumns(desired, opts.Columns, keyColumn)
	log.Debug("Resolved columns", zap.Strings("columns", plan.Columns))

	snapshot, err := LoadSnapshot(ctx, db, table, plan.Columns, keyColumn)
	if err != nil {
		log.Error("Failed to load table snapshot", zap.Error(err))
		return nil, err
	}
	plan.Snapshot = snapshot

	plan.Diff = Diff(snapshot, desired, plan.Columns, keyColumn)

	log.Info("Planned reconciliation",
		zap.Int("table_rows", len(snapshot)),
		zap.Int("desired_rows", len(desired)),
		zap.Int("delete", len(plan.Diff.Delete)),
		zap.Int("update", len(plan.Diff.Update)),
		zap.Int("insert", len(plan.Diff.Insert)),
		zap.Int("unchanged", len(plan.Diff.Unchanged)),
	)

	return plan, nil
}

// Summary returns the counts the plan would produce if fully applied.
func (p *Plan) Summary() Summary {
	s := Summary{
		RunID:     p.RunID,
		Deleted:   len(p.Diff.Delete),
		Updated:   len(p.Diff.Update),
		Inserted:  len(p.Diff.Insert),
		Unchanged: len(p.Diff.Unchanged),
	}
	s.finalize()
	return s
}

// Actions lists the planned statements in execution order: deletes, updates, inserts.
func (p *Plan) Actions() []Action {
	actions := make([]Action, 0, p.Diff.Changes())

	for _, key := range p.Diff.Delete {
		actions = append(actions, Action{Type: ActionDelete, Key: key})
	}

	for _, u := range p.Diff.Update {
		values := make(map[string]Value, len(u.Columns))
		previous := make(map[string]Value, len(u.Columns))
		for _, col := range u.Columns {
			values[col] = p.Desired[u.Key][col]
			previous[col] = p.Snapshot[u.Key][col]
		}
		actions = append(actions, Action{Type: ActionUpdate, Key: u.Key, Values: values, Previous: previous})
	}

	for _, key := range p.Diff.Insert {
		row := p.insertValues(key)
		values := make(map[string]Value, len(p.Columns))
		for i, col := range p.Columns {
			values[col] = row[i]
		}
		actions = append(actions, Action{Type: ActionInsert, Key: key, Values: values})
	}

	return actions
}

// insertValues returns the values of an inserted row in ColumnSet order.
// The key column takes the row's own typed key when present, the map key otherwise.
func (p *Plan) insertValues(key string) []Value {
	row := p.Desired[key]
	values := make([]Value, len(p.Columns))
	for i, col := range p.Columns {
		if col == p.KeyColumn {
			values[i] = p.desiredKey(key)
			continue
		}
		values[i] = row[col]
	}
	return values
}

func (p *Plan) desiredKey(key string) Value {
	if kv, ok := p.Desired[key][p.KeyColumn]; ok && !kv.IsNull() {
		return kv
	}
	return Value{v: key, valid: true}
}

// tableKey returns the key value as read from the table, so deletes and
// updates bind the column's own type.
func (p *Plan) tableKey(key string) Value {
	if kv, ok := p.Snapshot[key][p.KeyColumn]; ok && !kv.IsNull() {
		return kv
	}
	return Value{v: key, valid: true}
}
