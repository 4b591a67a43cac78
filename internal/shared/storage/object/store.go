package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving archived blobs,
// such as the repository snapshot captured for an analysis.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, name string, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
