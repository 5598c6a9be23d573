// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a small interface covering what
// table-sync needs: reading desired-state documents, listing a prefix of
// documents, and writing run reports. It works with AWS S3 and self-hosted
// MinIO alike.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easier to mock storage interactions for unit testing (see core/storage/mocks).
//
// # Locations
//
// ParseLocation splits "s3://bucket/object" references used on the command
// line; anything else is treated as a local path.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "desired-state")
package storage
