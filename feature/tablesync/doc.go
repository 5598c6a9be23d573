// Package tablesync implements the table-sync feature on top of core/reconcile.
//
// It turns a desired-state document into a reconcile.DesiredState, checks it
// against the live table definition, plans and applies the reconciliation and
// writes a run report.
//
// # Documents
//
// Desired-state documents are JSON or YAML, chosen by file extension. Two
// shapes are accepted:
//
//	{"1": {"name": "a"}, "2": {"name": "b"}}     // object keyed by row key
//	[{"id": 1, "name": "a"}, {"id": 2, "name": "b"}] // rows carrying the key column
//
// Documents are read from a local path or from object storage using an
// "s3://bucket/object" reference. A reference ending in "/" loads every JSON
// and YAML object under that prefix and merges them.
//
// # Components
//
//   - Loader: Reads and parses desired-state documents.
//   - Service: Validates columns, plans, applies and reports.
//   - Report: The JSON record of a run, written locally or to object storage.
package tablesync
