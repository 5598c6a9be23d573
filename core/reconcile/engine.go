package reconcile

import (
	"context"

	"gorm.io/gorm"
)

// Reconcile makes table match desired, correlating rows on keyColumn.
// It plans with ReconcileWithPlan and, unless opts.DryRun is set, applies the
// plan with ApplyPlan.
//
// Configuration errors are reported before any I/O. A failed snapshot read
// aborts before anything is written.
func Reconcile(
	ctx context.Context,
	db *gorm.DB,
	table string,
	keyColumn string,
	desired DesiredState,
	opts Options,
) (Summary, error) {
	plan, err := ReconcileWithPlan(ctx, db, table, keyColumn, desired, opts)
	if err != nil {
		return Summary{}, err
	}
	return ApplyPlan(ctx, db, plan, opts)
}
