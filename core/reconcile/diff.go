package reconcile

import (
	"sort"

	"table-sync/core/utils"
)

// Diff classifies every key of snapshot and desired.
//
// Keys only in the snapshot are deleted and keys only in the desired state are
// inserted. Keys in both are updated when at least one non-key column differs
// under null-aware equality, and left unchanged otherwise. A column missing
// from a desired row counts as NULL.
func Diff(snapshot Snapshot, desired DesiredState, columns ColumnSet, keyColumn string) DiffResult {
	var result DiffResult

	for key := range snapshot {
		if _, ok := desired[key]; !ok {
			result.Delete = append(result.Delete, key)
		}
	}

	for key, want := range desired {
		have, ok := snapshot[key]
		if !ok {
			result.Insert = append(result.Insert, key)
			continue
		}
		if changed := changedColumns(have, want, columns, keyColumn); len(changed) > 0 {
			result.Update = append(result.Update, Update{Key: key, Columns: changed})
		} else {
			result.Unchanged = append(result.Unchanged, key)
		}
	}

	sortKeys(result.Unchanged)
	sortKeys(result.Delete)
	sortKeys(result.Insert)
	sort.Slice(result.Update, func(i, j int) bool {
		return lessKey(result.Update[i].Key, result.Update[j].Key)
	})

	return result
}

func changedColumns(have, want Row, columns ColumnSet, keyColumn string) []string {
	var changed []string
	for _, name := range columns {
		if name == keyColumn {
			continue
		}
		if !want[name].Equal(have[name]) {
			changed = append(changed, name)
		}
	}
	return changed
}

func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})
}

// lessKey orders integer keys numerically and before every other key, which
// are ordered lexicographically.
func lessKey(a, b string) bool {
	ai, aInt := utils.ParseInt(a)
	bi, bInt := utils.ParseInt(b)
	switch {
	case aInt && bInt:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aInt != bInt:
		return aInt
	default:
		return a < b
	}
}
