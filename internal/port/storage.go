package port

import (
	"context"
)

// ObjectStorage abstracts read access to screenshots kept in object storage.
type ObjectStorage interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}
