package reconcile

import (
	"sort"
)

// ResolveColumns returns the columns taking part in a reconciliation.
// An explicit list is used as given. Otherwise the union of the column names of
// every desired row is collected and sorted so the SQL column order is
// reproducible. The key column is appended when missing.
func ResolveColumns(desired DesiredState, explicit []string, keyColumn string) ColumnSet {
	var cols ColumnSet
	if len(explicit) > 0 {
		cols = append(make(ColumnSet, 0, len(explicit)+1), explicit...)
	} else {
		seen := make(map[string]struct{})
		for _, row := range desired {
			for name := range row {
				seen[name] = struct{}{}
			}
		}

		cols = make(ColumnSet, 0, len(seen)+1)
		for name := range seen {
			cols = append(cols, name)
		}
		sort.Strings(cols)
	}

	if !cols.Contains(keyColumn) {
		cols = append(cols, keyColumn)
	}
	return cols
}

// Validate checks everything that can be checked without touching the database.
// ReconcileWithPlan calls it first; callers may use it to fail early.
func Validate(table, keyColumn string, desired DesiredState, opts Options) error {
	if table == "" {
		return &ConfigurationError{Field: "table", Reason: "table name is required"}
	}
	if keyColumn == "" {
		return &ConfigurationError{Field: "key column", Reason: "key column is required"}
	}
	if desired == nil {
		return &ConfigurationError{Field: "desired state", Reason: "desired state is required"}
	}

	seen := make(map[string]struct{}, len(opts.Columns))
	for _, col := range opts.Columns {
		if col == "" {
			return &ConfigurationError{Field: "columns", Reason: "empty column name"}
		}
		if _, dup := seen[col]; dup {
			return &ConfigurationError{Field: "columns", Reason: "duplicate column " + col}
		}
		seen[col] = struct{}{}
	}

	for key, row := range desired {
		if key == "" {
			return &ConfigurationError{Field: "desired state", Reason: "empty key"}
		}
		kv, ok := row[keyColumn]
		if !ok {
			continue
		}
		if kv.IsNull() {
			return &ConfigurationError{Field: "desired state", Reason: "row " + key + " has a null key column"}
		}
		if kv.String() != key {
			return &ConfigurationError{
				Field:  "desired state",
				Reason: "row " + key + " carries key column value " + kv.String(),
			}
		}
	}
	return nil
}
