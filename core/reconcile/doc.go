// Package reconcile makes a relational table match an in-memory keyed dataset.
//
// Given the desired state of a table as a mapping from key to row, the package
// computes and applies the minimal set of DELETE, UPDATE and INSERT statements
// that turn the current table contents into that state.
//
// # Pipeline
//
// A reconciliation runs five stages, each depending only on the previous one:
//
//  1. Column resolution: ResolveColumns picks the columns that take part in the
//     comparison. Unless given explicitly they are the sorted union of the
//     columns of every desired row. The key column is always included.
//  2. Snapshot load: LoadSnapshot reads the table once, restricted to those
//     columns, and indexes it by key.
//  3. Diff: Diff classifies every key as unchanged, to delete, to update (with
//     the exact changed columns) or to insert. Keys are sorted ascending inside
//     each bucket so the statement sequence is reproducible.
//  4. Apply: ApplyPlan issues deletes, then updates, then inserts. By default
//     all statements share one transaction and are rolled back together on
//     any failure.
//  5. Summary: counts of rows deleted, updated, inserted and left unchanged,
//     plus a noop/changed status.
//
// # Comparison
//
// Values are compared with null-aware equality: NULL equals NULL, NULL never
// equals a non-NULL value, and other values are equal when their string forms
// are equal. String forms follow what a database returns as text: booleans
// are 1 and 0, and times are "2006-01-02 15:04:05" with optional fractional
// seconds. No numeric-vs-string distinction is made, so 1 and "1" are equal
// while 1 and "1.0" are not. Callers needing numeric semantics should
// normalize values before building the DesiredState.
//
// # Usage
//
//	desired := reconcile.DesiredState{}
//	_ = desired.Set(1, map[string]any{"name": "alice", "email": nil})
//
//	summary, err := reconcile.Reconcile(ctx, db, "users", "id", desired, reconcile.Options{
//	    Logger: log,
//	})
//
// Use ReconcileWithPlan and ApplyPlan to inspect the planned statements before
// writing anything.
//
// # Limitations
//
// The whole table is loaded into memory. Concurrent writers to the same table
// are not detected, and the transaction only covers the apply stage.
package reconcile
