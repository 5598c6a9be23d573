package storage

import (
	"fmt"
	"strings"
)

// Scheme prefixes object storage references.
const Scheme = "s3://"

// Location is a parsed "s3://bucket/object" reference.
type Location struct {
	Bucket string
	Object string
}

// IsRemote reports whether ref points into object storage.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}

// IsPrefix reports whether the location names a prefix rather than one object.
func (l Location) IsPrefix() bool {
	return l.Object == "" || strings.HasSuffix(l.Object, "/")
}

func (l Location) String() string {
	return Scheme + l.Bucket + "/" + l.Object
}

// ParseLocation parses an "s3://bucket/object" reference. An empty bucket,
// as in "s3:///users.json", resolves to defaultBucket.
func ParseLocation(ref, defaultBucket string) (Location, error) {
	if !IsRemote(ref) {
		return Location{}, fmt.Errorf("not an object storage reference: %s", ref)
	}
	bucket, object, _ := strings.Cut(strings.TrimPrefix(ref, Scheme), "/")
	if bucket == "" {
		bucket = defaultBucket
	}
	if bucket == "" {
		return Location{}, fmt.Errorf("missing bucket in %s and no default bucket configured", ref)
	}
	return Location{Bucket: bucket, Object: object}, nil
}
