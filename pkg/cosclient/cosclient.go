// Package cosclient provides the narrow storage-client capability
// consumed by the file manager and the scan coordinator, together with a
// production backend speaking the S3 protocol of Tencent COS and the CI
// virus-scan HTTP API.
package cosclient

import (
	"context"
	"io"
	"time"

	"github.com/vcpagent/cosvault/pkg/dto"
)

// ObjectEntry is one raw listing entry as reported by the remote store.
type ObjectEntry struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListPage is one page of a paginated listing.
type ListPage struct {
	Entries    []ObjectEntry
	Truncated  bool
	NextMarker string
}

// Client is the set of remote operations this core depends on. It must
// be safe for read-only sharing between the file manager and the scan
// coordinator. Retry and timeout behavior belong to the implementation.
type Client interface {
	// Put writes body as the object at key.
	Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) error
	// UploadFile uploads the local file at localPath to key.
	UploadFile(ctx context.Context, key, localPath string) error
	// Download fetches key into destPath and returns the byte count.
	Download(ctx context.Context, key, destPath string) (int64, error)
	// Copy duplicates sourceKey to destKey within the bucket.
	Copy(ctx context.Context, destKey, sourceKey string) error
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// ListPage fetches one page of keys under prefix, continuing from marker.
	ListPage(ctx context.Context, prefix, marker string, maxKeys int32) (*ListPage, error)
	// ScanSubmit creates a virus-scan job for a stored key or external URL.
	ScanSubmit(ctx context.Context, key, url string) (*dto.ScanJob, error)
	// ScanQuery returns the current remote state of a scan job.
	ScanQuery(ctx context.Context, jobID string) (*dto.ScanJob, error)
}
