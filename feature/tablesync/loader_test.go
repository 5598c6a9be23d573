package tablesync_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"table-sync/core/reconcile"
	"table-sync/core/storage/mocks"
	"table-sync/feature/tablesync"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: 1\n  col1: a\n- id: 2\n  col1: b\n"), 0o644))

	loader := tablesync.NewLoader(nil, "", zap.NewNop())
	desired, err := loader.Load(context.Background(), path, "id")
	require.NoError(t, err)
	assert.Len(t, desired, 2)
	assert.Equal(t, "b", desired["2"]["col1"].Interface())
}

func TestLoader_LocalFileMissing(t *testing.T) {
	loader := tablesync.NewLoader(nil, "", zap.NewNop())
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "id")
	assert.Error(t, err)
}

func TestLoader_EmptySource(t *testing.T) {
	loader := tablesync.NewLoader(nil, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "", "id")
	assert.ErrorIs(t, err, reconcile.ErrConfiguration)
}

func TestLoader_RemoteWithoutClient(t *testing.T) {
	loader := tablesync.NewLoader(nil, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/items.json", "id")
	assert.ErrorIs(t, err, reconcile.ErrConfiguration)
}

func TestLoader_RemoteObject(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("GetObject", mock.Anything, "state", "items.json", mock.Anything).
		Return(body(`{"1": {"col1": "a"}, "2": {"col1": "b"}}`), nil)

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	desired, err := loader.Load(context.Background(), "s3://state/items.json", "id")
	require.NoError(t, err)
	assert.Len(t, desired, 2)

	mockClient.AssertExpectations(t)
}

func TestLoader_RemotePrefixMergesDocuments(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("ListObjects", mock.Anything, "state", minio.ListObjectsOptions{Prefix: "items/", Recursive: true}).
		Return(mocks.Objects("items/b.yaml", "items/README.md", "items/a.json", "items/sub/"))
	mockClient.On("GetObject", mock.Anything, "state", "items/a.json", mock.Anything).
		Return(body(`[{"id": 1, "col1": "a"}]`), nil)
	mockClient.On("GetObject", mock.Anything, "state", "items/b.yaml", mock.Anything).
		Return(body("- id: 2\n  col1: b\n"), nil)

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	desired, err := loader.Load(context.Background(), "s3://state/items/", "id")
	require.NoError(t, err)
	assert.Len(t, desired, 2)
	assert.Contains(t, desired, "1")
	assert.Contains(t, desired, "2")

	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "GetObject", mock.Anything, "state", "items/README.md", mock.Anything)
}

func TestLoader_RemotePrefixDuplicateKeyAcrossDocuments(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("ListObjects", mock.Anything, "state", mock.Anything).
		Return(mocks.Objects("a.json", "b.json"))
	mockClient.On("GetObject", mock.Anything, "state", "a.json", mock.Anything).
		Return(body(`{"1": {"col1": "a"}}`), nil)
	mockClient.On("GetObject", mock.Anything, "state", "b.json", mock.Anything).
		Return(body(`{"1": {"col1": "b"}}`), nil)

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/", "id")
	assert.ErrorIs(t, err, reconcile.ErrConfiguration)
}

func TestLoader_RemotePrefixWithoutDocuments(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("ListObjects", mock.Anything, "state", mock.Anything).Return(mocks.Objects("notes.txt"))

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/", "id")
	assert.ErrorIs(t, err, reconcile.ErrConfiguration)
}

func TestLoader_RemoteBucketMissing(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(false, nil)

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/items.json", "id")
	assert.ErrorContains(t, err, "bucket state not found")
}

func TestLoader_RemoteGetFails(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("GetObject", mock.Anything, "state", "items.json", mock.Anything).
		Return(nil, errors.New("access denied"))

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/items.json", "id")
	assert.ErrorContains(t, err, "access denied")
}

func TestLoader_RemotePrefixListErrorCancelsListing(t *testing.T) {
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "a.json"}
	ch <- minio.ObjectInfo{Err: errors.New("listing interrupted")}
	// Left open: the lister would still be sending.

	var listCtx context.Context
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "state").Return(true, nil)
	mockClient.On("ListObjects", mock.Anything, "state", mock.Anything).
		Run(func(args mock.Arguments) {
			listCtx = args.Get(0).(context.Context)
		}).
		Return((<-chan minio.ObjectInfo)(ch))

	loader := tablesync.NewLoader(mockClient, "", zap.NewNop())
	_, err := loader.Load(context.Background(), "s3://state/", "id")
	assert.ErrorContains(t, err, "listing interrupted")

	require.NotNil(t, listCtx)
	assert.ErrorIs(t, listCtx.Err(), context.Canceled)
	mockClient.AssertNotCalled(t, "GetObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoader_RemoteObjectDefaultBucket(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("BucketExists", mock.Anything, "table-sync").Return(true, nil)
	mockClient.On("GetObject", mock.Anything, "table-sync", "items.yml", mock.Anything).
		Return(body("1:\n  col1: a\n"), nil)

	loader := tablesync.NewLoader(mockClient, "table-sync", zap.NewNop())
	desired, err := loader.Load(context.Background(), "s3:///items.yml", "id")
	require.NoError(t, err)
	assert.Contains(t, desired, "1")

	mockClient.AssertExpectations(t)
}
