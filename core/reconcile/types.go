package reconcile

import (
	"go.uber.org/zap"
)

// Row maps column names to values.
type Row map[string]Value

// DesiredState is the dataset the table should be made to match.
// It is indexed by the string form of each row's key.
type DesiredState map[string]Row

// Set validates key and row and stores the row under the key's string form.
// If row carries the key column it is checked later against the key by
// ReconcileWithPlan.
func (d DesiredState) Set(key any, row map[string]any) error {
	k, err := NewValue(key)
	if err != nil {
		return &ConfigurationError{Field: "key", Reason: err.Error()}
	}
	if k.IsNull() {
		return &ConfigurationError{Field: "key", Reason: "key must not be null"}
	}
	r, err := RowFromMap(row)
	if err != nil {
		return err
	}
	d[k.String()] = r
	return nil
}

// Snapshot is the table contents at the start of a reconciliation, keyed like DesiredState.
type Snapshot map[string]Row

// ColumnSet is the ordered list of columns used for comparison and for SQL column lists.
type ColumnSet []string

// Contains reports whether name is part of the set.
func (c ColumnSet) Contains(name string) bool {
	for _, col := range c {
		if col == name {
			return true
		}
	}
	return false
}

// Update is a planned UPDATE of one row.
type Update struct {
	// Key identifies the row.
	Key string `json:"key"`

	// Columns lists only the columns whose value changes, in ColumnSet order.
	Columns []string `json:"columns"`
}

// DiffResult classifies every key of the snapshot and the desired state.
// The four buckets are disjoint and each is sorted ascending by key.
type DiffResult struct {
	Unchanged []string `json:"unchanged"`
	Delete    []string `json:"delete"`
	Update    []Update `json:"update"`
	Insert    []string `json:"insert"`
}

// Changes returns the number of statements the diff requires.
func (d DiffResult) Changes() int {
	return len(d.Delete) + len(d.Update) + len(d.Insert)
}

// Status tells callers whether a run changed anything.
type Status string

const (
	// StatusNoop means no row was deleted, updated or inserted.
	StatusNoop Status = "noop"
	// StatusChanged means at least one row was written.
	StatusChanged Status = "changed"
)

// Summary reports the rows affected by a reconciliation.
type Summary struct {
	// RunID identifies the run in logs and reports.
	RunID string `json:"run_id"`

	Deleted   int `json:"deleted"`
	Updated   int `json:"updated"`
	Inserted  int `json:"inserted"`
	Unchanged int `json:"unchanged"`

	// Status is StatusNoop when Deleted, Updated and Inserted are all zero.
	Status Status `json:"status"`

	// DryRun is set when the counts are planned rather than applied.
	DryRun bool `json:"dry_run"`
}

// Changed reports whether any row was written.
func (s Summary) Changed() bool {
	return s.Deleted+s.Updated+s.Inserted > 0
}

func (s *Summary) finalize() {
	if s.Changed() {
		s.Status = StatusChanged
	} else {
		s.Status = StatusNoop
	}
}

// Options controls a reconciliation.
type Options struct {
	// Columns overrides the derived column set. The key column is appended if missing.
	Columns []string

	// SkipTransaction runs each statement on its own instead of wrapping the
	// apply stage in a single transaction. A failure then leaves earlier
	// statements applied.
	SkipTransaction bool

	// DryRun stops after planning. No statement is executed.
	DryRun bool

	// Logger receives progress and failures. Nil disables logging.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ActionType is the kind of statement an Action stands for.
type ActionType string

const (
	// ActionDelete removes a row absent from the desired state.
	ActionDelete ActionType = "delete"
	// ActionUpdate rewrites the changed columns of a row.
	ActionUpdate ActionType = "update"
	// ActionInsert adds a row absent from the table.
	ActionInsert ActionType = "insert"
)

// Action is one planned statement, in execution order.
type Action struct {
	Type ActionType `json:"type"`
	Key  string     `json:"key"`

	// Values holds the written columns for updates and inserts.
	Values map[string]Value `json:"values,omitempty"`

	// Previous holds the table values being replaced, for updates only.
	Previous map[string]Value `json:"previous,omitempty"`
}
