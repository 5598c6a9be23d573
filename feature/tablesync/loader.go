package tablesync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"table-sync/core/reconcile"
	"table-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Loader reads desired-state documents from disk or object storage.
type Loader struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

// NewLoader creates a loader. client may be nil when only local paths are
// used; bucket serves references that leave the bucket empty ("s3:///a.json").
func NewLoader(client storage.Client, bucket string, logger *zap.Logger) *Loader {
	return &Loader{client: client, bucket: bucket, logger: logger}
}

// Load reads the document(s) at ref and builds the desired state keyed on keyColumn.
func (l *Loader) Load(ctx context.Context, ref, keyColumn string) (reconcile.DesiredState, error) {
	if ref == "" {
		return nil, &reconcile.ConfigurationError{Field: "source", Reason: "a desired-state source is required"}
	}

	desired := reconcile.DesiredState{}

	if !storage.IsRemote(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ref, err)
		}
		if err := ParseDocument(data, FormatFromName(ref), keyColumn, desired); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
		l.logger.Info("Loaded desired state", zap.String("source", ref), zap.Int("rows", len(desired)))
		return desired, nil
	}

	loc, err := storage.ParseLocation(ref, l.bucket)
	if err != nil {
		return nil, &reconcile.ConfigurationError{Field: "source", Reason: err.Error()}
	}
	if l.client == nil {
		return nil, &reconcile.ConfigurationError{Field: "source", Reason: "object storage is not configured"}
	}

	exists, err := l.client.BucketExists(ctx, loc.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s not found", loc.Bucket)
	}

	objects := []string{loc.Object}
	if loc.IsPrefix() {
		objects, err = l.listDocuments(ctx, loc)
		if err != nil {
			return nil, err
		}
	}

	for _, name := range objects {
		if err := l.loadObject(ctx, loc.Bucket, name, keyColumn, desired); err != nil {
			return nil, err
		}
	}

	l.logger.Info("Loaded desired state",
		zap.String("source", ref),
		zap.Int("documents", len(objects)),
		zap.Int("rows", len(desired)),
	)
	return desired, nil
}

// listDocuments returns the JSON and YAML objects under a prefix, sorted by name.
// Returning early cancels the listing so the lister goroutine is released.
func (l *Loader) listDocuments(ctx context.Context, loc storage.Location) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var names []string
	for obj := range l.client.ListObjects(ctx, loc.Bucket, minio.ListObjectsOptions{
		Prefix:    loc.Object,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", loc, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") || !isDocument(obj.Key) {
			continue
		}
		names = append(names, obj.Key)
	}
	if len(names) == 0 {
		return nil, &reconcile.ConfigurationError{Field: "source", Reason: fmt.Sprintf("no documents under %s", loc)}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Loader) loadObject(ctx context.Context, bucket, name, keyColumn string, desired reconcile.DesiredState) error {
	reader, err := l.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := ParseDocument(data, FormatFromName(name), keyColumn, desired); err != nil {
		return fmt.Errorf("%s: %w", path.Base(name), err)
	}
	l.logger.Debug("Parsed document", zap.String("bucket", bucket), zap.String("object", name))
	return nil
}
