package reconcile

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	selectItems = "SELECT `col1`,`col2`,`id` FROM `items`"
	deleteItem  = "DELETE FROM `items` WHERE `id` = ?"
	updateCol2  = "UPDATE `items` SET `col2` = ? WHERE `id` = ?"
	insertItem  = "INSERT INTO `items` (`col1`,`col2`,`id`) VALUES (?,?,?)"
)

// setupMockDB creates a mock GORM DB for testing.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

// expectExampleSnapshot registers the read of the three-row example table.
func expectExampleSnapshot(mock sqlmock.Sqlmock) {
	rows := sqlmock.NewRows([]string{"col1", "col2", "id"}).
		AddRow("a", "b", 1).
		AddRow("c", "c", 2).
		AddRow("g", "h", 3)
	mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnRows(rows)
}

func TestReconcileWithPlan_Example(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	plan, err := ReconcileWithPlan(context.Background(), db, "items", "id", exampleDesired(), Options{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.NotEmpty(t, plan.RunID)
	assert.Equal(t, ColumnSet{"col1", "col2", "id"}, plan.Columns)
	assert.Len(t, plan.Snapshot, 3)
	assert.Equal(t, []string{"3"}, plan.Diff.Delete)
	assert.Equal(t, []Update{{Key: "2", Columns: []string{"col2"}}}, plan.Diff.Update)
	assert.Equal(t, []string{"4"}, plan.Diff.Insert)
	assert.Equal(t, []string{"1"}, plan.Diff.Unchanged)

	summary := plan.Summary()
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, StatusChanged, summary.Status)
}

func TestPlan_Actions(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	plan, err := ReconcileWithPlan(context.Background(), db, "items", "id", exampleDesired(), Options{})
	require.NoError(t, err)

	actions := plan.Actions()
	require.Len(t, actions, 3)

	assert.Equal(t, ActionDelete, actions[0].Type)
	assert.Equal(t, "3", actions[0].Key)
	assert.Nil(t, actions[0].Values)

	assert.Equal(t, ActionUpdate, actions[1].Type)
	assert.Equal(t, "2", actions[1].Key)
	assert.Equal(t, map[string]Value{"col2": MustValue("d")}, actions[1].Values)
	assert.Equal(t, "c", actions[1].Previous["col2"].String())

	assert.Equal(t, ActionInsert, actions[2].Type)
	assert.Equal(t, "4", actions[2].Key)
	assert.Equal(t, "e", actions[2].Values["col1"].String())
	assert.Equal(t, "f", actions[2].Values["col2"].String())
	assert.Equal(t, "4", actions[2].Values["id"].String())
}

func TestReconcileWithPlan_ConfigurationErrorsBeforeIO(t *testing.T) {
	db, mock := setupMockDB(t)

	_, err := ReconcileWithPlan(context.Background(), db, "", "id", exampleDesired(), Options{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ReconcileWithPlan(context.Background(), db, "items", "", exampleDesired(), Options{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ReconcileWithPlan(context.Background(), db, "items", "id", nil, Options{})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ReconcileWithPlan(context.Background(), nil, "items", "id", exampleDesired(), Options{})
	assert.ErrorIs(t, err, ErrConfiguration)

	// No query may have been issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mockRun func(sqlmock.Sqlmock)
		wantKey string
	}{
		{
			name: "QueryFails",
			mockRun: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnError(errors.New("no such table"))
			},
		},
		{
			name: "NullKey",
			mockRun: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"col1", "col2", "id"}).AddRow("a", "b", nil)
				mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnRows(rows)
			},
		},
		{
			name: "DuplicateKey",
			mockRun: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"col1", "col2", "id"}).
					AddRow("a", "b", 1).
					AddRow("c", "d", 1)
				mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnRows(rows)
			},
			wantKey: "1",
		},
		{
			name: "RowError",
			mockRun: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"col1", "col2", "id"}).
					AddRow("a", "b", 1).
					RowError(0, errors.New("read failed"))
				mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnRows(rows)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.mockRun(mock)

			snapshot, err := LoadSnapshot(context.Background(), db, "items", ColumnSet{"col1", "col2", "id"}, "id")
			assert.Nil(t, snapshot)
			assert.ErrorIs(t, err, ErrQuery)

			var qe *QueryError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, OpSelect, qe.Op)
			assert.Equal(t, "items", qe.Table)
			assert.Equal(t, tt.wantKey, qe.Key)
		})
	}
}

func TestReconcile_SnapshotFailureWritesNothing(t *testing.T) {
	db, mock := setupMockDB(t)
	connErr := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
	mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnError(connErr)

	summary, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{})
	assert.ErrorIs(t, err, ErrQuery)
	assert.True(t, IsConnectivity(err))
	assert.Equal(t, Summary{}, summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPlan_Transactional(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteItem)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateCol2)).WithArgs("d", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertItem)).WithArgs("e", "f", "4").WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()

	summary, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, StatusChanged, summary.Status)
	assert.True(t, summary.Changed())
	assert.False(t, summary.DryRun)
}

func TestApplyPlan_InsertUsesTypedKey(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `name`,`id` FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}))

	desired := DesiredState{}
	require.NoError(t, desired.Set(9, map[string]any{"name": "n", "id": 9}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users` (`name`,`id`) VALUES (?,?)")).
		WithArgs("n", 9).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	summary, err := Reconcile(context.Background(), db, "users", "id", desired, Options{Columns: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPlan_RollbackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteItem)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateCol2)).WithArgs("d", 2).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	summary, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.True(t, applyErr.RolledBack)
	assert.Equal(t, summary, applyErr.Summary)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, OpUpdate, qe.Op)
	assert.Equal(t, "2", qe.Key)
	assert.ErrorIs(t, err, ErrQuery)

	// Nothing persisted.
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 3, summary.Unchanged)
	assert.Equal(t, StatusNoop, summary.Status)
}

func TestApplyPlan_CommitFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteItem)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateCol2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertItem)).WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit refused"))

	_, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{})

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, OpTransaction, qe.Op)
	assert.Contains(t, err.Error(), "commit refused")
}

func TestApplyPlan_NonTransactionalPartialFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	// Third write fails; the first two stay applied.
	mock.ExpectExec(regexp.QuoteMeta(deleteItem)).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(updateCol2)).WithArgs("d", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertItem)).WithArgs("e", "f", "4").WillReturnError(errors.New("duplicate entry"))

	summary, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{SkipTransaction: true})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.False(t, applyErr.RolledBack)
	assert.Equal(t, 1, applyErr.Summary.Deleted)
	assert.Equal(t, 1, applyErr.Summary.Updated)
	assert.Equal(t, 0, applyErr.Summary.Inserted)
	assert.Equal(t, 1, applyErr.Summary.Unchanged)
	assert.Equal(t, StatusChanged, applyErr.Summary.Status)
	assert.Equal(t, applyErr.Summary, summary)
	assert.Contains(t, err.Error(), "1 deletes, 1 updates, 0 inserts")

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, OpInsert, qe.Op)
	assert.Equal(t, "4", qe.Key)
}

func TestApplyPlan_DryRun(t *testing.T) {
	db, mock := setupMockDB(t)
	expectExampleSnapshot(mock)

	summary, err := Reconcile(context.Background(), db, "items", "id", exampleDesired(), Options{DryRun: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "dry run must not write")

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Unchanged)
}

func TestApplyPlan_NoChangesIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"col1", "col2", "id"}).AddRow("a", "b", 1)
	mock.ExpectQuery(regexp.QuoteMeta(selectItems)).WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectCommit()

	desired := DesiredState{"1": {"col1": MustValue("a"), "col2": MustValue("b")}}
	summary, err := Reconcile(context.Background(), db, "items", "id", desired, Options{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, StatusNoop, summary.Status)
	assert.False(t, summary.Changed())
	assert.Equal(t, 1, summary.Unchanged)
}

func TestApplyPlan_NilPlan(t *testing.T) {
	db, _ := setupMockDB(t)
	_, err := ApplyPlan(context.Background(), db, nil, Options{})
	assert.ErrorIs(t, err, ErrConfiguration)
}
