package storage

import (
	"context"
	"io"
)

// ArchiveOptions conveys archive destination metadata.
type ArchiveOptions struct {
	Bucket      string
	KeyPrefix   string
	ContentType string
}

// Service archives session exports to remote object storage.
type Service interface {
	PutObject(ctx context.Context, key string, body io.Reader, opts ArchiveOptions) (string, error)
}
