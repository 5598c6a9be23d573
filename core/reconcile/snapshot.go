package reconcile

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	errNullKey      = errors.New("key column is null")
	errDuplicateKey = errors.New("duplicate key")
)

// LoadSnapshot reads table restricted to columns and indexes the rows by the
// string form of their key column. Any failure, including a NULL or duplicated
// key, is returned as a *QueryError and no partial snapshot is kept.
func LoadSnapshot(ctx context.Context, db *gorm.DB, table string, columns ColumnSet, keyColumn string) (Snapshot, error) {
	rows, err := db.WithContext(ctx).Raw(selectStatement(db, table, columns)).Rows()
	if err != nil {
		return nil, &QueryError{Op: OpSelect, Table: table, Err: err}
	}
	defer rows.Close()

	raw := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	snapshot := make(Snapshot)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, &QueryError{Op: OpSelect, Table: table, Err: err}
		}

		row := make(Row, len(columns))
		for i, name := range columns {
			val, err := NewValue(raw[i])
			if err != nil {
				return nil, &QueryError{Op: OpSelect, Table: table, Err: err}
			}
			row[name] = val
		}

		kv := row[keyColumn]
		if kv.IsNull() {
			return nil, &QueryError{Op: OpSelect, Table: table, Err: errNullKey}
		}
		key := kv.String()
		if _, dup := snapshot[key]; dup {
			return nil, &QueryError{Op: OpSelect, Table: table, Key: key, Err: errDuplicateKey}
		}
		snapshot[key] = row
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: OpSelect, Table: table, Err: err}
	}

	return snapshot, nil
}

// quote renders an identifier with the quoting rules of the connection's dialect.
func quote(db *gorm.DB, name string) string {
	var b strings.Builder
	db.Dialector.QuoteTo(&b, name)
	return b.String()
}

func quoteList(db *gorm.DB, names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(db, name)
	}
	return strings.Join(quoted, ",")
}

func selectStatement(db *gorm.DB, table string, columns ColumnSet) string {
	return "SELECT " + quoteList(db, columns) + " FROM " + quote(db, table)
}
